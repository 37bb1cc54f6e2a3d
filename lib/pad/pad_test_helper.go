package pad

import (
	"github.com/brianvoe/gofakeit/v6"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/settings"
	"go.uber.org/zap"
)

const testDefaultPadText = "Welcome to easysync"

func newTestManager() (*Manager, db.DataStore) {
	ds := db.NewMemoryDataStore()
	retrievedSettings := &settings.Settings{
		DefaultPadText:   testDefaultPadText,
		PadTextMaxLength: 100000,
	}
	return NewManager(ds, retrievedSettings, zap.NewNop().Sugar()), ds
}

func randomPadId() string {
	return gofakeit.LetterN(10)
}

func randomAuthorId() string {
	return "a." + gofakeit.UUID()
}
