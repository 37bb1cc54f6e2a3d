package testutils

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ether/easysync/lib"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/ws"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const DefaultPadText = "Welcome to easysync"

type TestDataStore struct {
	DS                db.DataStore
	Logger            *zap.SugaredLogger
	Settings          *settings.Settings
	PadManager        *pad.Manager
	PadMessageHandler *ws.PadMessageHandler
	Validator         *validator.Validate
	Hub               *ws.Hub
	App               *fiber.App
}

func (t *TestDataStore) ToInitStore() *lib.InitStore {
	return &lib.InitStore{
		C:                 t.App,
		RetrievedSettings: t.Settings,
		Store:             t.DS,
		Handler:           t.PadMessageHandler,
		PadManager:        t.PadManager,
		Validator:         t.Validator,
		Logger:            t.Logger,
	}
}

type TestRunConfig struct {
	Name string
	Test func(t *testing.T, tsStore TestDataStore)
}

// TestDBHandler runs every added test once per datastore, each time on a
// fresh store.
type TestDBHandler struct {
	t     *testing.T
	tests []TestRunConfig
}

func NewTestDBHandler(t *testing.T) *TestDBHandler {
	t.Helper()
	return &TestDBHandler{
		t: t,
	}
}

func TestSettings() *settings.Settings {
	return &settings.Settings{
		IP:                 "127.0.0.1",
		Port:               "9001",
		LogLevel:           "info",
		DBType:             settings.MEMORY,
		DefaultPadText:     DefaultPadText,
		PadTextMaxLength:   1000,
		SocketIo:           settings.SocketIoSettings{MaxHttpBufferSize: 50000},
		CommitRateLimiting: settings.CommitRateLimiting{Duration: 1, Points: 1000},
	}
}

func (test *TestDBHandler) AddTests(testConfs ...TestRunConfig) {
	test.tests = append(test.tests, testConfs...)
}

func (test *TestDBHandler) StartTestDBHandler() {
	datastores := map[string]func(t *testing.T) db.DataStore{
		"Memory": func(t *testing.T) db.DataStore {
			return db.NewMemoryDataStore()
		},
		"SQLite": func(t *testing.T) db.DataStore {
			sqliteDB, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "easysync.db"), zap.NewNop().Sugar())
			if err != nil {
				t.Fatalf("Failed to create SQLite DataStore: %v", err)
			}
			return sqliteDB
		},
	}

	for dsName, newDS := range datastores {
		test.t.Run(dsName, func(t *testing.T) {
			t.Parallel()

			for _, testConf := range test.tests {
				test.TestRun(t, testConf, newDS)
			}
		})
	}
}

func (test *TestDBHandler) TestRun(
	t *testing.T,
	testRun TestRunConfig,
	newDS func(t *testing.T) db.DataStore,
) {
	t.Run(testRun.Name, func(t *testing.T) {
		ds := newDS(t)
		loggerPart := zap.NewNop().Sugar()
		retrievedSettings := TestSettings()

		ctx, cancel := context.WithCancel(context.Background())
		hub := ws.NewHub()
		hubDone := make(chan struct{})
		go func() {
			defer close(hubDone)
			_ = hub.Run(ctx)
		}()
		t.Cleanup(func() {
			cancel()
			<-hubDone
			if err := ds.Close(); err != nil {
				t.Errorf("error closing datastore: %v", err)
			}
		})

		padManager := pad.NewManager(ds, retrievedSettings, loggerPart)
		padMessageHandler := ws.NewPadMessageHandler(padManager, hub, ws.NewSessionStore(), retrievedSettings, loggerPart)

		testRun.Test(t, TestDataStore{
			DS:                ds,
			Logger:            loggerPart,
			Settings:          retrievedSettings,
			PadManager:        padManager,
			PadMessageHandler: padMessageHandler,
			Validator:         validator.New(validator.WithRequiredStructEnabled()),
			Hub:               hub,
			App:               fiber.New(fiber.Config{Immutable: true}),
		})
	})
}
