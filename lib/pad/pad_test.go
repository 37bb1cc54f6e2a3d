package pad

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/models/pad"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorPool(authorId string) apool.JsonablePool {
	pool := apool.NewAPool()
	pool.PutAttrib(apool.Attribute{Key: "author", Value: authorId}, false)
	return pool.ToJsonable()
}

func TestPadDefaultingToSettingsText(t *testing.T) {
	manager, _ := newTestManager()

	retrievedPad, err := manager.GetPad(randomPadId(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, testDefaultPadText+"\n", retrievedPad.Text())
}

func TestUseProvidedContent(t *testing.T) {
	manager, _ := newTestManager()
	want := "hello world"

	createdPad, err := manager.GetPad(randomPadId(), &want, nil)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", createdPad.Text())
}

func TestGetPadIsCached(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()

	first, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	second, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	manager.UnloadPad(padId)
	reloaded, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, first.AText, reloaded.AText)
}

func TestGetPadRejectsInvalidInput(t *testing.T) {
	manager, _ := newTestManager()

	_, err := manager.GetPad("with space", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPadId)

	_, err = manager.GetPad(strings.Repeat("x", 51), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPadId)

	tooLong := strings.Repeat("x", 100001)
	_, err = manager.GetPad(randomPadId(), &tooLong, nil)
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestSanitizePadId(t *testing.T) {
	manager, _ := newTestManager()

	sanitized, err := manager.SanitizePadId("my pad::one")
	require.NoError(t, err)
	assert.Equal(t, "my_pad_one", sanitized)

	manager.settings.LowerCasePadIDs = true
	sanitized, err = manager.SanitizePadId("MyPad")
	require.NoError(t, err)
	assert.Equal(t, "mypad", sanitized)

	_, err = manager.SanitizePadId("dollar$sign")
	assert.ErrorIs(t, err, ErrInvalidPadId)
}

func TestListAndRemovePads(t *testing.T) {
	manager, ds := newTestManager()
	padIds := []string{"alpha", "beta", "gamma"}
	for _, padId := range padIds {
		_, err := manager.GetPad(padId, nil, nil)
		require.NoError(t, err)
	}

	listed, err := manager.ListPads()
	require.NoError(t, err)
	if diff := cmp.Diff(padIds, listed); diff != "" {
		t.Errorf("ListPads mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, manager.RemovePad("beta"))
	listed, err = manager.ListPads()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gamma"}, listed)

	exists, err := manager.DoesPadExist("beta")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = ds.GetRevision("beta", 0)
	assert.Error(t, err)
}

func TestListPadsLoadsStoredPads(t *testing.T) {
	manager, ds := newTestManager()
	_, err := manager.GetPad("stored", nil, nil)
	require.NoError(t, err)

	fresh := NewManager(ds, manager.settings, manager.logger)
	listed, err := fresh.ListPads()
	require.NoError(t, err)
	assert.Equal(t, []string{"stored"}, listed)
}

func TestSetAndAppendText(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	authorId := randomAuthorId()

	head, err := manager.SetText(padId, "abc", &authorId)
	require.NoError(t, err)
	assert.Equal(t, 1, head)

	head, err = manager.AppendText(padId, "def", &authorId)
	require.NoError(t, err)
	assert.Equal(t, 2, head)

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdef\n", retrievedPad.Text())
	assert.Equal(t, []string{authorId}, retrievedPad.GetAllAuthors())
}

func TestApplyUserChanges(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	authorId := randomAuthorId()
	text := "hello"
	_, err := manager.GetPad(padId, &text, nil)
	require.NoError(t, err)

	commit, err := manager.ApplyUserChanges(context.Background(), padId, authorId, 0, "Z:6>1=5*0+1$!", authorPool(authorId))
	require.NoError(t, err)
	assert.Equal(t, Commit{BaseRev: 0, NewRev: 1}, commit)

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello!\n", retrievedPad.Text())
	assert.Equal(t, []string{authorId}, retrievedPad.GetAllAuthors())

	author, err := retrievedPad.GetRevisionAuthor(1)
	require.NoError(t, err)
	assert.Equal(t, authorId, author)
	assert.NoError(t, retrievedPad.Check())
}

func TestApplyUserChangesRebasesConcurrentEdits(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	text := "hello"
	_, err := manager.GetPad(padId, &text, nil)
	require.NoError(t, err)

	first, err := manager.ApplyUserChanges(context.Background(), padId, randomAuthorId(), 0, "Z:6>1+1$A", apool.JsonablePool{})
	require.NoError(t, err)
	assert.Equal(t, Commit{BaseRev: 0, NewRev: 1}, first)

	second, err := manager.ApplyUserChanges(context.Background(), padId, randomAuthorId(), 0, "Z:6>1=5+1$B", apool.JsonablePool{})
	require.NoError(t, err)
	assert.Equal(t, Commit{BaseRev: 1, NewRev: 2}, second)

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "AhelloB\n", retrievedPad.Text())
}

func TestApplyUserChangesIgnoresRetransmission(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	authorId := randomAuthorId()
	text := "hello"
	_, err := manager.GetPad(padId, &text, nil)
	require.NoError(t, err)

	cs := "Z:6>1=5+1$!"
	_, err = manager.ApplyUserChanges(context.Background(), padId, authorId, 0, cs, apool.JsonablePool{})
	require.NoError(t, err)

	commit, err := manager.ApplyUserChanges(context.Background(), padId, authorId, 0, cs, apool.JsonablePool{})
	require.NoError(t, err)
	assert.Equal(t, Commit{BaseRev: 1, NewRev: 1}, commit)

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello!\n", retrievedPad.Text())
}

func TestApplyUserChangesRestoresTrailingNewline(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	text := "ab"
	_, err := manager.GetPad(padId, &text, nil)
	require.NoError(t, err)

	commit, err := manager.ApplyUserChanges(context.Background(), padId, randomAuthorId(), 0, "Z:3<1=2|1-1$", apool.JsonablePool{})
	require.NoError(t, err)
	assert.Equal(t, 1, commit.NewRev)

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ab\n", retrievedPad.Text())
	assert.Equal(t, 2, retrievedPad.Head)
}

func TestApplyUserChangesRejectsBadInput(t *testing.T) {
	authorId := randomAuthorId()
	testCases := []struct {
		name    string
		baseRev int
		cs      string
		pool    apool.JsonablePool
		wantErr error
	}{
		{"malformed", 0, "not a changeset", apool.JsonablePool{}, ErrBadChangeset},
		{"bank mismatch", 0, "Z:6>1=5+1$", apool.JsonablePool{}, ErrBadChangeset},
		{"wrong length", 0, "Z:3>1+1$x", apool.JsonablePool{}, ErrBadChangeset},
		{"unknown attribute", 0, "Z:6>1*5+1$x", apool.JsonablePool{}, ErrBadChangeset},
		{"future base revision", 7, "Z:6>1+1$x", apool.JsonablePool{}, ErrBadChangeset},
		{"foreign author", 0, "Z:6>1*0+1$x", authorPool("a.someoneelse"), ErrForeignAuthor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manager, _ := newTestManager()
			padId := randomPadId()
			text := "hello"
			_, err := manager.GetPad(padId, &text, nil)
			require.NoError(t, err)

			_, err = manager.ApplyUserChanges(context.Background(), padId, authorId, tc.baseRev, tc.cs, tc.pool)
			assert.ErrorIs(t, err, tc.wantErr)

			retrievedPad, err := manager.GetPad(padId, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, retrievedPad.Head)
			assert.Equal(t, "hello\n", retrievedPad.Text())
		})
	}
}

func TestApplyUserChangesConcurrently(t *testing.T) {
	manager, _ := newTestManager()
	padId := randomPadId()
	text := "hello"
	_, err := manager.GetPad(padId, &text, nil)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.ApplyUserChanges(context.Background(), padId, randomAuthorId(), 0, "Z:6>1+1$x", apool.JsonablePool{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	retrievedPad, err := manager.GetPad(padId, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, writers, retrievedPad.Head)
	assert.Equal(t, strings.Repeat("x", writers)+"hello\n", retrievedPad.Text())
	assert.NoError(t, retrievedPad.Check())
}

func TestOnRevisionReportsEveryRevisionInOrder(t *testing.T) {
	manager, _ := newTestManager()
	var mu sync.Mutex
	var seen []string
	manager.OnRevision(func(revision Revision) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, fmt.Sprintf("%s@%d", revision.PadID, revision.Rev))
	})

	authorId := randomAuthorId()
	text := "ab"
	_, err := manager.GetPad("events", &text, nil)
	require.NoError(t, err)
	_, err = manager.ApplyUserChanges(context.Background(), "events", authorId, 0, "Z:3<1=2|1-1$", apool.JsonablePool{})
	require.NoError(t, err)
	_, err = manager.AppendText("events", "c", &authorId)
	require.NoError(t, err)

	// loading a stored pad again reports nothing
	manager.UnloadPad("events")
	_, err = manager.GetPad("events", nil, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"events@0", "events@1", "events@2", "events@3"}, seen)
}

func TestCopyPadWithoutHistory(t *testing.T) {
	manager, _ := newTestManager()
	authorId := randomAuthorId()
	_, err := manager.SetText("source", "copy me", &authorId)
	require.NoError(t, err)
	_, err = manager.AppendText("source", " please", &authorId)
	require.NoError(t, err)

	require.NoError(t, manager.CopyPadWithoutHistory("source", "target", false, &authorId))
	target, err := manager.GetPad("target", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "copy me please\n", target.Text())
	assert.Equal(t, 1, target.Head)
	assert.NoError(t, target.Check())

	err = manager.CopyPadWithoutHistory("source", "target", false, &authorId)
	assert.ErrorIs(t, err, ErrPadExists)

	_, err = manager.AppendText("source", "!", &authorId)
	require.NoError(t, err)
	require.NoError(t, manager.CopyPadWithoutHistory("source", "target", true, &authorId))
	target, err = manager.GetPad("target", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "copy me please!\n", target.Text())
}

func TestReadPadDoesNotCreate(t *testing.T) {
	manager, _ := newTestManager()

	err := manager.ReadPad("missing", func(p *pad.Pad) error {
		t.Fatal("callback must not run for a missing pad")
		return nil
	})
	assert.ErrorIs(t, err, ErrPadNotFound)

	exists, err := manager.DoesPadExist("missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = manager.GetPad("present", nil, nil)
	require.NoError(t, err)
	manager.UnloadPad("present")
	var text string
	require.NoError(t, manager.ReadPad("present", func(p *pad.Pad) error {
		text = p.Text()
		return nil
	}))
	assert.Equal(t, testDefaultPadText+"\n", text)
}
