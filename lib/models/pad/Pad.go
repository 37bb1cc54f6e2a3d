package pad

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/changeset"
	"github.com/ether/easysync/lib/db"
	db2 "github.com/ether/easysync/lib/models/db"
	"github.com/ether/easysync/lib/utils"
)

// KeyRevisionInterval is the distance between revisions that store a full
// snapshot of the document.
const KeyRevisionInterval = 100

var ErrOutOfRange = errors.New("splice out of range")

// ErrCorrupt is returned by Check when the stored history does not add up.
var ErrCorrupt = errors.New("pad is corrupt")

type Pad struct {
	db        db.DataStore
	Id        string
	Head      int
	Pool      *apool.APool
	AText     apool.AText
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func NewPad(id string, store db.DataStore) *Pad {
	return &Pad{
		db:    store,
		Id:    id,
		Head:  -1,
		Pool:  apool.NewAPool(),
		AText: changeset.MakeAText("\n", ""),
	}
}

func (p *Pad) Text() string {
	return p.AText.Text
}

func CleanText(context string) *string {
	context = strings.ReplaceAll(context, "\r\n", "\n")
	context = strings.ReplaceAll(context, "\r", "\n")
	context = strings.ReplaceAll(context, "\t", "        ")
	context = strings.ReplaceAll(context, "\xa0", " ")
	return &context
}

// Init loads the pad from the store. An unknown pad is created with text as
// revision 0.
func (p *Pad) Init(text *string, authorId *string) error {
	padDB, err := p.db.GetPad(p.Id)
	if err == nil {
		return mapDBPadToModel(padDB, p)
	}
	if !errors.Is(err, db.ErrPadNotFound) {
		return err
	}

	initialText := ""
	if text != nil {
		initialText = *CleanText(*text)
	}
	firstChangeset, err := changeset.MakeSplice("\n", 0, 0, initialText, changeset.AttribArgs{}, nil)
	if err != nil {
		return err
	}
	_, err = p.AppendRevision(firstChangeset, authorId)
	return err
}

func (p *Pad) save() error {
	return p.db.CreatePad(p.Id, db2.PadDB{
		Head:         p.Head,
		Pool:         p.Pool.ToJsonable(),
		ATextText:    p.AText.Text,
		ATextAttribs: p.AText.Attribs,
		CreatedAt:    p.CreatedAt,
	})
}

func (p *Pad) GetHeadRevisionNumber() int {
	return p.Head
}

func (p *Pad) keyRevisionNumber(rev int) int {
	return rev / KeyRevisionInterval * KeyRevisionInterval
}

// AppendRevision applies cs to the document and stores it as the next
// revision. A changeset that leaves the document unchanged is not stored and
// the current head is returned.
func (p *Pad) AppendRevision(cs string, authorId *string) (int, error) {
	newAText, err := changeset.ApplyToAText(cs, p.AText, p.Pool)
	if err != nil {
		return p.Head, err
	}

	if newAText.Equal(p.AText) && p.Head != -1 {
		return p.Head, nil
	}

	oldAText := p.AText
	p.AText = newAText
	p.Head++

	revision := db2.RevisionDB{
		RevNum:    p.Head,
		Changeset: cs,
		Timestamp: time.Now().UnixMilli(),
	}
	if authorId != nil && *authorId != "" {
		p.Pool.PutAttrib(apool.Attribute{
			Key:   "author",
			Value: *authorId,
		}, false)
		author := *authorId
		revision.AuthorId = &author
	}
	if p.Head == p.keyRevisionNumber(p.Head) {
		snapshot := p.AText
		pool := p.Pool.ToJsonable()
		revision.AText = &snapshot
		revision.Pool = &pool
	}

	if err := p.db.SaveRevision(p.Id, revision); err != nil {
		p.AText = oldAText
		p.Head--
		return p.Head, fmt.Errorf("error saving revision %d of pad %s: %w", revision.RevNum, p.Id, err)
	}
	if err := p.save(); err != nil {
		return p.Head, fmt.Errorf("error saving pad %s: %w", p.Id, err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	return p.Head, nil
}

// SpliceText removes ndel characters at start and inserts ins there. The
// document keeps ending with a newline.
func (p *Pad) SpliceText(start int, ndel int, ins string, authorId *string) error {
	if start < 0 {
		return fmt.Errorf("%w: start index must be non-negative (is %d)", ErrOutOfRange, start)
	}
	if ndel < 0 {
		return fmt.Errorf("%w: characters to delete must be non-negative (is %d)", ErrOutOfRange, ndel)
	}
	orig := []rune(p.Text())
	if start+ndel > len(orig) {
		return fmt.Errorf("%w: start/delete past the end of the text", ErrOutOfRange)
	}

	ins = *CleanText(ins)
	willEndWithNewline := start+ndel < len(orig) ||
		strings.HasSuffix(ins, "\n") ||
		(ins == "" && start > 0 && orig[start-1] == '\n')
	if !willEndWithNewline {
		ins += "\n"
	}
	if ndel == 0 && ins == "" {
		return nil
	}

	cs, err := changeset.MakeSplice(string(orig), start, ndel, ins, changeset.AttribArgs{}, nil)
	if err != nil {
		return err
	}
	_, err = p.AppendRevision(cs, authorId)
	return err
}

// SetText replaces the whole document.
func (p *Pad) SetText(newText string, authorId *string) error {
	return p.SpliceText(0, utils.RuneCount(p.Text()), newText, authorId)
}

// AppendText inserts newText in front of the final newline.
func (p *Pad) AppendText(newText string, authorId *string) error {
	return p.SpliceText(utils.RuneCount(p.Text())-1, 0, newText, authorId)
}

func (p *Pad) GetRevision(revNumber int) (*db2.RevisionDB, error) {
	return p.db.GetRevision(p.Id, revNumber)
}

func (p *Pad) GetRevisionChangeset(revNumber int) (string, error) {
	revision, err := p.GetRevision(revNumber)
	if err != nil {
		return "", err
	}
	return revision.Changeset, nil
}

// GetRevisionAuthor returns the author of a revision or "" if it has none.
func (p *Pad) GetRevisionAuthor(revNumber int) (string, error) {
	revision, err := p.GetRevision(revNumber)
	if err != nil {
		return "", err
	}
	if revision.AuthorId == nil {
		return "", nil
	}
	return *revision.AuthorId, nil
}

func (p *Pad) GetRevisionDate(revNumber int) (int64, error) {
	revision, err := p.GetRevision(revNumber)
	if err != nil {
		return 0, err
	}
	return revision.Timestamp, nil
}

// GetInternalRevisionAText rebuilds the document at targetRev from the
// closest key revision. A target past the head yields the head.
func (p *Pad) GetInternalRevisionAText(targetRev int) (apool.AText, error) {
	if targetRev < 0 {
		return apool.AText{}, fmt.Errorf("%w: revision %d", ErrOutOfRange, targetRev)
	}
	if targetRev > p.Head {
		targetRev = p.Head
	}
	keyRev := p.keyRevisionNumber(targetRev)
	keyRevision, err := p.db.GetRevision(p.Id, keyRev)
	if err != nil {
		return apool.AText{}, err
	}
	if keyRevision.AText == nil {
		return apool.AText{}, fmt.Errorf("%w: key revision %d has no snapshot", ErrCorrupt, keyRev)
	}

	atext := changeset.CloneAText(*keyRevision.AText)
	if keyRev == targetRev {
		return atext, nil
	}
	revisions, err := p.db.GetRevisions(p.Id, keyRev+1, targetRev)
	if err != nil {
		return apool.AText{}, err
	}
	for _, revision := range *revisions {
		atext, err = changeset.ApplyToAText(revision.Changeset, atext, p.Pool)
		if err != nil {
			return apool.AText{}, fmt.Errorf("revision %d: %w", revision.RevNum, err)
		}
	}
	return atext, nil
}

// GetAllAuthors returns the sorted ids of every author known to the pool.
func (p *Pad) GetAllAuthors() []string {
	var authorIds = make([]string, 0)

	p.Pool.EachAttrib(func(key, value string) {
		if key == "author" && value != "" {
			authorIds = append(authorIds, value)
		}
	})
	slices.Sort(authorIds)
	return authorIds
}

// CopyWithoutHistory writes the current document into dst as a single
// revision. dst must be a freshly created, empty pad.
func (p *Pad) CopyWithoutHistory(dst *Pad, authorId *string) (int, error) {
	if dst.Text() != "\n" {
		return dst.Head, fmt.Errorf("destination pad %s is not empty", dst.Id)
	}
	dst.Pool = p.Pool.Clone()

	ops, err := changeset.OpsFromAText(p.AText)
	if err != nil {
		return dst.Head, err
	}
	assem := changeset.NewSmartOpAssembler()
	for _, op := range ops {
		assem.Append(op)
	}
	assem.EndDocument()

	text := []rune(p.Text())
	bank := string(text[:len(text)-1])
	cs := changeset.Pack(1, len(text), assem.String(), bank)
	return dst.AppendRevision(cs, authorId)
}

// Check replays the stored history and verifies it against the current
// document and pool.
func (p *Pad) Check() error {
	if p.Head < -1 {
		return fmt.Errorf("%w: invalid head %d", ErrCorrupt, p.Head)
	}
	if err := p.Pool.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	authorIds := make(map[string]struct{})
	p.Pool.EachAttrib(func(key, value string) {
		if key == "author" && value != "" {
			authorIds[value] = struct{}{}
		}
	})

	atext := changeset.MakeAText("\n", "")
	if p.Head >= 0 {
		revisions, err := p.db.GetRevisions(p.Id, 0, p.Head)
		if err != nil {
			return err
		}
		for _, revision := range *revisions {
			if err := p.checkRevision(revision, &atext, authorIds); err != nil {
				return fmt.Errorf("%w: (pad %s revision %d) %w", ErrCorrupt, p.Id, revision.RevNum, err)
			}
		}
	}

	if !p.AText.Equal(atext) {
		return fmt.Errorf("%w: document does not match its history", ErrCorrupt)
	}
	replayedAuthors := make([]string, 0, len(authorIds))
	for authorId := range authorIds {
		replayedAuthors = append(replayedAuthors, authorId)
	}
	slices.Sort(replayedAuthors)
	if !slices.Equal(p.GetAllAuthors(), replayedAuthors) {
		return fmt.Errorf("%w: authors %v do not match the history %v", ErrCorrupt, p.GetAllAuthors(), replayedAuthors)
	}
	return nil
}

func (p *Pad) checkRevision(revision db2.RevisionDB, atext *apool.AText, authorIds map[string]struct{}) error {
	if revision.AuthorId != nil && *revision.AuthorId != "" {
		authorIds[*revision.AuthorId] = struct{}{}
	}
	if revision.Timestamp <= 0 {
		return fmt.Errorf("invalid timestamp %d", revision.Timestamp)
	}
	if err := changeset.CheckRep(revision.Changeset); err != nil {
		return err
	}
	unpacked, err := changeset.Unpack(revision.Changeset)
	if err != nil {
		return err
	}

	ops, err := changeset.DeserializeOps(unpacked.Ops)
	if err != nil {
		return err
	}
	text := []rune(atext.Text)
	for _, op := range ops {
		if op.OpCode == "=" || op.OpCode == "-" {
			if len(text) < op.Chars {
				return fmt.Errorf("op %s runs past the end of the document", op.String())
			}
			consumed := string(text[:op.Chars])
			if nlines := strings.Count(consumed, "\n"); nlines != op.Lines {
				return fmt.Errorf("op %s spans %d lines", op.String(), nlines)
			}
			if op.Lines > 0 && !strings.HasSuffix(consumed, "\n") {
				return fmt.Errorf("op %s does not end at a line end", op.String())
			}
			text = text[op.Chars:]
		}
		attribs, err := changeset.FromString(op.Attribs, p.Pool)
		if err != nil {
			return err
		}
		if attribs.String() != op.Attribs {
			return fmt.Errorf("attributes %q are not in canonical form", op.Attribs)
		}
	}

	next, err := changeset.ApplyToAText(revision.Changeset, *atext, p.Pool)
	if err != nil {
		return err
	}
	*atext = next
	if revision.RevNum == p.keyRevisionNumber(revision.RevNum) {
		if revision.AText == nil {
			return errors.New("key revision has no snapshot")
		}
		if !revision.AText.Equal(next) {
			return errors.New("key revision snapshot does not match the history")
		}
	}
	return nil
}
