package pad

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/changeset"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/models/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/utils"
	"go.uber.org/zap"
)

var (
	ErrInvalidPadId  = errors.New("invalid pad id")
	ErrTextTooLong   = errors.New("text is too long")
	ErrPadExists     = errors.New("pad already exists")
	ErrPadNotFound   = errors.New("pad does not exist")
	ErrBadChangeset  = errors.New("bad changeset")
	ErrForeignAuthor = errors.New("changeset carries another author")
)

// List tracks the ids of every stored pad. It is filled from the store on
// first use.
type List struct {
	mu         sync.Mutex
	cachedList []string
	list       map[string]struct{}
	loaded     bool
	db         db.DataStore
}

func NewList(db db.DataStore) *List {
	return &List{
		cachedList: make([]string, 0),
		list:       make(map[string]struct{}),
		db:         db,
	}
}

func (l *List) AddPad(padID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addPad(padID)
}

func (l *List) addPad(padID string) {
	if _, ok := l.list[padID]; !ok {
		l.list[padID] = struct{}{}
		l.cachedList = append(l.cachedList, padID)
	}
}

func (l *List) RemovePad(padID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.list[padID]; ok {
		delete(l.list, padID)
		l.cachedList = slices.DeleteFunc(l.cachedList, func(v string) bool {
			return v == padID
		})
	}
}

// GetPads returns the sorted pad ids.
func (l *List) GetPads() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		dbData, err := l.db.GetPadIds()
		if err != nil {
			return nil, err
		}
		for _, padId := range *dbData {
			l.addPad(padId)
		}
		l.loaded = true
	}
	padIds := slices.Clone(l.cachedList)
	slices.Sort(padIds)
	return padIds, nil
}

var padRegex = regexp.MustCompile(`^(g\.[A-Za-z0-9]{16})?[^ \t\r\n\f\v$]{1,50}$`)

var padIdTransforms = []struct {
	from *regexp.Regexp
	to   string
}{
	{regexp.MustCompile(`\s+`), "_"},
	{regexp.MustCompile(`:+`), "_"},
}

type GlobalPadCache struct {
	mu       sync.RWMutex
	padCache map[string]*pad.Pad
}

func (g *GlobalPadCache) GetPad(padID string) *pad.Pad {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.padCache[padID]
}

func (g *GlobalPadCache) SetPad(padID string, pad *pad.Pad) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.padCache[padID] = pad
}

func (g *GlobalPadCache) DeletePad(padID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.padCache, padID)
}

func (g *GlobalPadCache) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.padCache)
}

// Revision describes a revision appended through the manager.
type Revision struct {
	PadID     string
	Rev       int
	Changeset string
	Author    string
	Timestamp int64
}

// RevisionListener is called for every new revision while the pad is still
// locked, so revisions of one pad arrive in order. It must not call back into
// the manager for the same pad.
type RevisionListener func(Revision)

// Commit is the result of ApplyUserChanges. BaseRev is the head the change
// was rebased onto, NewRev the head after applying it.
type Commit struct {
	BaseRev int
	NewRev  int
}

// Manager owns the loaded pads. All writes to a pad go through the manager
// and are serialized by a lock per pad.
type Manager struct {
	store          db.DataStore
	settings       *settings.Settings
	logger         *zap.SugaredLogger
	globalPadCache *GlobalPadCache
	padList        *List

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	listenersMu sync.RWMutex
	listeners   []RevisionListener
}

func NewManager(store db.DataStore, retrievedSettings *settings.Settings, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		store:    store,
		settings: retrievedSettings,
		logger:   logger,
		globalPadCache: &GlobalPadCache{
			padCache: make(map[string]*pad.Pad),
		},
		padList: NewList(store),
		locks:   make(map[string]*sync.Mutex),
	}
}

// OnRevision registers a listener for new revisions.
func (m *Manager) OnRevision(listener RevisionListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) lockPad(padID string) func() {
	m.locksMu.Lock()
	lock, ok := m.locks[padID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[padID] = lock
	}
	m.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// notify reports every revision after fromRev to the listeners.
func (m *Manager) notify(p *pad.Pad, fromRev int) {
	m.listenersMu.RLock()
	listeners := slices.Clone(m.listeners)
	m.listenersMu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	for rev := fromRev + 1; rev <= p.Head; rev++ {
		revision, err := p.GetRevision(rev)
		if err != nil {
			m.logger.Errorf("error loading revision %d of pad %s for listeners: %v", rev, p.Id, err)
			return
		}
		event := Revision{
			PadID:     p.Id,
			Rev:       rev,
			Changeset: revision.Changeset,
			Timestamp: revision.Timestamp,
		}
		if revision.AuthorId != nil {
			event.Author = *revision.AuthorId
		}
		for _, listener := range listeners {
			listener(event)
		}
	}
}

func (m *Manager) DoesPadExist(padID string) (bool, error) {
	exists, err := m.store.DoesPadExist(padID)
	if err != nil {
		return false, err
	}
	return *exists, nil
}

func (m *Manager) IsValidPadId(padID string) bool {
	return padRegex.MatchString(padID)
}

// SanitizePadId maps a requested id onto a valid one. An id of an existing
// pad is returned as is.
func (m *Manager) SanitizePadId(padID string) (string, error) {
	if m.settings.LowerCasePadIDs {
		padID = strings.ToLower(padID)
	}
	exists, err := m.DoesPadExist(padID)
	if err != nil {
		return "", err
	}
	if exists {
		return padID, nil
	}
	for _, transform := range padIdTransforms {
		padID = transform.from.ReplaceAllString(padID, transform.to)
	}
	if !m.IsValidPadId(padID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPadId, padID)
	}
	return padID, nil
}

// getPad loads a pad into the cache. The caller holds the pad lock.
func (m *Manager) getPad(padID string, text *string, authorId *string) (*pad.Pad, error) {
	if !m.IsValidPadId(padID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPadId, padID)
	}

	if text != nil {
		if utf8.RuneCountInString(*text) > m.settings.PadTextMaxLength {
			return nil, ErrTextTooLong
		}
	} else {
		defaultText := m.settings.DefaultPadText
		text = &defaultText
	}

	if cachedPad := m.globalPadCache.GetPad(padID); cachedPad != nil {
		return cachedPad, nil
	}

	exists, err := m.DoesPadExist(padID)
	if err != nil {
		return nil, err
	}
	newPad := pad.NewPad(padID, m.store)
	if err := newPad.Init(text, authorId); err != nil {
		return nil, fmt.Errorf("error initializing pad %s: %w", padID, err)
	}
	m.globalPadCache.SetPad(padID, newPad)
	m.padList.AddPad(padID)
	if !exists {
		m.logger.Debugf("created pad %s", padID)
		m.notify(newPad, -1)
	}

	return newPad, nil
}

// GetPad returns the pad, creating it with text (or the configured default
// text) if it does not exist yet.
func (m *Manager) GetPad(padID string, text *string, authorId *string) (*pad.Pad, error) {
	unlock := m.lockPad(padID)
	defer unlock()

	return m.getPad(padID, text, authorId)
}

// WithPad runs fn on the pad while holding its lock. Revisions fn appends are
// reported to the listeners.
func (m *Manager) WithPad(padID string, fn func(p *pad.Pad) error) error {
	unlock := m.lockPad(padID)
	defer unlock()

	retrievedPad, err := m.getPad(padID, nil, nil)
	if err != nil {
		return err
	}
	headBefore := retrievedPad.Head
	err = fn(retrievedPad)
	m.notify(retrievedPad, headBefore)
	return err
}

// ReadPad runs fn on an existing pad while holding its lock. Unlike WithPad
// it never creates the pad.
func (m *Manager) ReadPad(padID string, fn func(p *pad.Pad) error) error {
	unlock := m.lockPad(padID)
	defer unlock()

	if m.globalPadCache.GetPad(padID) == nil {
		exists, err := m.DoesPadExist(padID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrPadNotFound, padID)
		}
	}
	retrievedPad, err := m.getPad(padID, nil, nil)
	if err != nil {
		return err
	}
	return fn(retrievedPad)
}

// SetText replaces the document of the pad, creating it if needed.
func (m *Manager) SetText(padID string, text string, authorId *string) (int, error) {
	if utf8.RuneCountInString(text) > m.settings.PadTextMaxLength {
		return 0, ErrTextTooLong
	}
	var head int
	err := m.WithPad(padID, func(p *pad.Pad) error {
		err := p.SetText(text, authorId)
		head = p.Head
		return err
	})
	return head, err
}

// AppendText adds text in front of the final newline of the pad.
func (m *Manager) AppendText(padID string, text string, authorId *string) (int, error) {
	var head int
	err := m.WithPad(padID, func(p *pad.Pad) error {
		if utf8.RuneCountInString(p.Text())+utf8.RuneCountInString(text) > m.settings.PadTextMaxLength {
			return ErrTextTooLong
		}
		err := p.AppendText(text, authorId)
		head = p.Head
		return err
	})
	return head, err
}

func (m *Manager) RemovePad(padID string) error {
	unlock := m.lockPad(padID)
	defer unlock()

	if err := m.store.RemovePad(padID); err != nil {
		return err
	}
	m.globalPadCache.DeletePad(padID)
	m.padList.RemovePad(padID)

	return nil
}

// UnloadPad drops the pad from the cache. It stays in the store.
func (m *Manager) UnloadPad(id string) {
	unlock := m.lockPad(id)
	defer unlock()
	m.globalPadCache.DeletePad(id)
}

func (m *Manager) ListPads() ([]string, error) {
	return m.padList.GetPads()
}

// CopyPadWithoutHistory copies the current document of srcID into a new pad
// dstID as a single revision. An existing destination is replaced only when
// force is set.
func (m *Manager) CopyPadWithoutHistory(srcID, dstID string, force bool, authorId *string) error {
	if srcID == dstID {
		return fmt.Errorf("%w: %s", ErrPadExists, dstID)
	}
	if !m.IsValidPadId(dstID) {
		return fmt.Errorf("%w: %q", ErrInvalidPadId, dstID)
	}
	exists, err := m.DoesPadExist(dstID)
	if err != nil {
		return err
	}
	if exists {
		if !force {
			return fmt.Errorf("%w: %s", ErrPadExists, dstID)
		}
		if err := m.RemovePad(dstID); err != nil {
			return err
		}
	}

	snapshot := pad.NewPad(srcID, m.store)
	err = m.WithPad(srcID, func(src *pad.Pad) error {
		snapshot.AText = src.AText
		snapshot.Pool = src.Pool.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	unlock := m.lockPad(dstID)
	defer unlock()

	empty := ""
	dst, err := m.getPad(dstID, &empty, authorId)
	if err != nil {
		return err
	}
	headBefore := dst.Head
	_, err = snapshot.CopyWithoutHistory(dst, authorId)
	m.notify(dst, headBefore)
	return err
}

// ApplyUserChanges rebases a changeset a client made against baseRev onto
// the current head and appends it. wirePool is the pool the changeset's
// attribute numbers refer to.
func (m *Manager) ApplyUserChanges(ctx context.Context, padID, authorId string, baseRev int, cs string, wirePool apool.JsonablePool) (Commit, error) {
	if err := changeset.CheckRep(cs); err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}
	unpacked, err := changeset.Unpack(cs)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}
	wireApool := apool.NewAPool()
	if err := wireApool.FromJsonable(wirePool); err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}

	// FromString also rejects attribute numbers missing from the wire pool.
	ops, err := changeset.DeserializeOps(unpacked.Ops)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}
	for _, op := range ops {
		attribs, err := changeset.FromString(op.Attribs, wireApool)
		if err != nil {
			return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
		}
		if opAuthorId := attribs.Get("author"); opAuthorId != "" && opAuthorId != authorId {
			return Commit{}, fmt.Errorf("%w: %s tried to submit changes as %s", ErrForeignAuthor, authorId, opAuthorId)
		}
	}

	unlock := m.lockPad(padID)
	defer unlock()

	retrievedPad, err := m.getPad(padID, nil, &authorId)
	if err != nil {
		return Commit{}, err
	}
	if baseRev < 0 || baseRev > retrievedPad.Head {
		return Commit{}, fmt.Errorf("%w: base revision %d outside 0..%d", ErrBadChangeset, baseRev, retrievedPad.Head)
	}

	rebasedChangeset := changeset.MoveOpsToNewPool(cs, wireApool, retrievedPad.Pool)

	r := baseRev
	for r < retrievedPad.Head {
		if err := ctx.Err(); err != nil {
			return Commit{}, err
		}
		r++
		revision, err := retrievedPad.GetRevision(r)
		if err != nil {
			return Commit{}, fmt.Errorf("error loading revision %d of pad %s: %w", r, padID, err)
		}
		if revision.Changeset == cs && revision.AuthorId != nil && *revision.AuthorId == authorId {
			// a retransmission of a changeset that is already applied
			rebasedChangeset = changeset.Identity(unpacked.OldLen)
		}
		rebasedChangeset, err = changeset.Follow(rebasedChangeset, revision.Changeset, false, retrievedPad.Pool)
		if err != nil {
			return Commit{}, fmt.Errorf("%w: rebasing onto revision %d: %w", ErrBadChangeset, r, err)
		}
	}

	prevLen := utils.RuneCount(retrievedPad.Text())
	oldLen, err := changeset.OldLen(rebasedChangeset)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}
	if oldLen != prevLen {
		return Commit{}, fmt.Errorf("%w: can't apply changeset %s with oldLen %d to document of length %d",
			ErrBadChangeset, rebasedChangeset, oldLen, prevLen)
	}

	newRev, err := retrievedPad.AppendRevision(rebasedChangeset, &authorId)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: %w", ErrBadChangeset, err)
	}

	if !retrievedPad.AText.Terminated() {
		text := retrievedPad.Text()
		nlChangeset, err := changeset.MakeSplice(text, utils.RuneCount(text), 0, "\n", changeset.AttribArgs{}, nil)
		if err != nil {
			return Commit{}, err
		}
		if _, err := retrievedPad.AppendRevision(nlChangeset, &authorId); err != nil {
			return Commit{}, err
		}
	}

	m.notify(retrievedPad, r)
	return Commit{BaseRev: r, NewRev: newRev}, nil
}
