package stats

import (
	"runtime/debug"

	"github.com/ether/easysync/lib"
)

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "devel"
	}
	return info.Main.Version
}

func Init(store *lib.InitStore) {
	checks := []Checker{
		DBChecker{store.Store},
		SessionChecker{store.Handler.SessionStore},
	}

	store.C.Get("/health", Handler(
		buildVersion(),
		"easysync",
		checks,
	))
}
