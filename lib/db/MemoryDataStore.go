package db

import (
	"sort"
	"sync"
	"time"

	"github.com/ether/easysync/lib/models/db"
)

type MemoryDataStore struct {
	mu            sync.RWMutex
	padStore      map[string]db.PadDB
	revisionStore map[string]map[int]db.RevisionDB
}

func (m *MemoryDataStore) CreatePad(padID string, padDB db.PadDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.padStore[padID]; ok {
		padDB.CreatedAt = existing.CreatedAt
	} else if padDB.CreatedAt.IsZero() {
		padDB.CreatedAt = time.Now()
	}
	now := time.Now()
	padDB.ID = padID
	padDB.UpdatedAt = &now
	m.padStore[padID] = padDB
	return nil
}

func (m *MemoryDataStore) GetPad(padID string) (*db.PadDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	retrievedPad, ok := m.padStore[padID]
	if !ok {
		return nil, ErrPadNotFound
	}
	return &retrievedPad, nil
}

func (m *MemoryDataStore) DoesPadExist(padID string) (*bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.padStore[padID]
	return &ok, nil
}

func (m *MemoryDataStore) RemovePad(padID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.padStore, padID)
	delete(m.revisionStore, padID)
	return nil
}

func (m *MemoryDataStore) GetPadIds() (*[]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	padIds := make([]string, 0, len(m.padStore))
	for k := range m.padStore {
		padIds = append(padIds, k)
	}
	sort.Strings(padIds)
	return &padIds, nil
}

func (m *MemoryDataStore) SaveRevision(padID string, rev db.RevisionDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	revisions, ok := m.revisionStore[padID]
	if !ok {
		revisions = make(map[int]db.RevisionDB)
		m.revisionStore[padID] = revisions
	}
	if _, exists := revisions[rev.RevNum]; exists {
		return nil
	}
	rev.PadId = padID
	revisions[rev.RevNum] = rev
	return nil
}

func (m *MemoryDataStore) GetRevision(padID string, rev int) (*db.RevisionDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	retrievedRev, ok := m.revisionStore[padID][rev]
	if !ok {
		return nil, ErrRevisionNotFound
	}
	return &retrievedRev, nil
}

func (m *MemoryDataStore) GetRevisions(padID string, startRev int, endRev int) (*[]db.RevisionDB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	revisions := make([]db.RevisionDB, 0)
	for rev := startRev; rev <= endRev; rev++ {
		retrievedRev, ok := m.revisionStore[padID][rev]
		if !ok {
			return nil, ErrRevisionNotFound
		}
		revisions = append(revisions, retrievedRev)
	}
	return &revisions, nil
}

func (m *MemoryDataStore) Close() error {
	return nil
}

func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{
		padStore:      make(map[string]db.PadDB),
		revisionStore: make(map[string]map[int]db.RevisionDB),
	}
}

var _ DataStore = (*MemoryDataStore)(nil)
