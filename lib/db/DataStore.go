package db

import "github.com/ether/easysync/lib/models/db"

type PadMethods interface {
	// CreatePad inserts the pad or replaces the stored head state.
	CreatePad(padID string, padDB db.PadDB) error
	GetPad(padID string) (*db.PadDB, error)
	DoesPadExist(padID string) (*bool, error)
	// RemovePad deletes the pad together with its revisions.
	RemovePad(padID string) error
	GetPadIds() (*[]string, error)
}

type RevisionMethods interface {
	// SaveRevision stores a revision once. Saving an existing revision number
	// again is a no-op.
	SaveRevision(padID string, rev db.RevisionDB) error
	GetRevision(padID string, rev int) (*db.RevisionDB, error)
	// GetRevisions returns the revisions startRev..endRev inclusive in order.
	GetRevisions(padID string, startRev int, endRev int) (*[]db.RevisionDB, error)
}

type DataStore interface {
	PadMethods
	RevisionMethods
	Close() error
}
