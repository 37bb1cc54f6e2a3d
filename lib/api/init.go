package api

import (
	"github.com/ether/easysync/lib"
	"github.com/ether/easysync/lib/api/pad"
	"github.com/ether/easysync/lib/api/stats"
)

func InitAPI(store *lib.InitStore) {
	pad.Init(store)
	stats.Init(store)
}
