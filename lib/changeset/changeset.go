package changeset

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/utils"
)

var headerRegex = regexp.MustCompile(`^Z:([0-9a-z]+)([><])([0-9a-z]+)`)

// Changeset is the unpacked form of a serialized changeset
// `Z:<oldLen>(>|<)<|newLen-oldLen|><ops>$<charBank>`.
type Changeset struct {
	OldLen   int
	NewLen   int
	Ops      string
	CharBank string
}

// Pack builds the "Z:<oldLen><sign><diff><ops>$<bank>" form. Lengths and op
// sizes count Unicode code points, so a character outside the Basic
// Multilingual Plane counts once. Etherpad counts UTF-16 code units and
// stores such a character as two, so histories holding them do not match
// Etherpad's byte for byte.
func Pack(oldLen int, newLen int, opStr string, bank string) string {
	lenDiff := newLen - oldLen
	var lenDiffStr string
	if lenDiff >= 0 {
		lenDiffStr = ">" + utils.NumToString(lenDiff)
	} else {
		lenDiffStr = "<" + utils.NumToString(-lenDiff)
	}
	return "Z:" + utils.NumToString(oldLen) + lenDiffStr + opStr + "$" + bank
}

// Unpack splits a changeset into its header, ops and char bank. Lengths are
// in code points, see Pack.
func Unpack(cs string) (*Changeset, error) {
	headerMatch := headerRegex.FindStringSubmatch(cs)
	if headerMatch == nil {
		return nil, malformed("not a changeset: %q", cs)
	}
	oldLen, err := utils.ParseNum(headerMatch[1])
	if err != nil {
		return nil, malformed("old length %q: %v", headerMatch[1], err)
	}
	changeMag, err := utils.ParseNum(headerMatch[3])
	if err != nil {
		return nil, malformed("length change %q: %v", headerMatch[3], err)
	}
	changeSign := 1
	if headerMatch[2] == "<" {
		changeSign = -1
	}
	newLen := oldLen + changeSign*changeMag
	if newLen < 0 {
		return nil, malformed("negative new length in %q", cs)
	}

	opsStart := len(headerMatch[0])
	opsEnd := strings.IndexByte(cs, '$')
	charBank := ""
	if opsEnd < 0 {
		opsEnd = len(cs)
	} else {
		charBank = cs[opsEnd+1:]
	}
	if opsEnd < opsStart {
		return nil, malformed("misplaced char bank separator in %q", cs)
	}

	return &Changeset{
		OldLen:   oldLen,
		NewLen:   newLen,
		Ops:      cs[opsStart:opsEnd],
		CharBank: charBank,
	}, nil
}

func OldLen(cs string) (int, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return 0, err
	}
	return unpacked.OldLen, nil
}

func NewLen(cs string) (int, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return 0, err
	}
	return unpacked.NewLen, nil
}

// CheckRep validates a changeset, including that it is already in the
// canonical form the assemblers produce.
func CheckRep(cs string) error {
	unpacked, err := Unpack(cs)
	if err != nil {
		return err
	}
	charBank := NewStringIterator(unpacked.CharBank)
	assem := NewSmartOpAssembler()
	oldPos := 0
	calcNewLen := 0

	iter := NewOpIterator(unpacked.Ops, 0)
	for iter.HasNext() {
		o, err := iter.Next()
		if err != nil {
			return err
		}
		switch o.OpCode {
		case "=":
			oldPos += o.Chars
			calcNewLen += o.Chars
			if oldPos > unpacked.OldLen {
				return malformed("keep past the end of the document in %q", cs)
			}
		case "-":
			oldPos += o.Chars
			if oldPos > unpacked.OldLen {
				return malformed("removal past the end of the document in %q", cs)
			}
		case "+":
			if charBank.Remaining() < o.Chars {
				return malformed("not enough chars in charBank of %q", cs)
			}
			chars, _ := charBank.Take(o.Chars)
			nlines := strings.Count(chars, "\n")
			if nlines != o.Lines {
				return malformed("number of newlines in insertion %d does not match op %d in %q", nlines, o.Lines, cs)
			}
			if o.Lines != 0 && !strings.HasSuffix(chars, "\n") {
				return malformed("multiline insert does not end with a newline in %q", cs)
			}
			calcNewLen += o.Chars
			if calcNewLen > unpacked.NewLen {
				return malformed("new length exceeded in %q", cs)
			}
		default:
			return malformed("unknown opcode %q", o.OpCode)
		}
		assem.Append(o)
	}
	calcNewLen += unpacked.OldLen - oldPos
	if calcNewLen != unpacked.NewLen {
		return malformed("claimed length %d does not match actual length %d", unpacked.NewLen, calcNewLen)
	}
	if charBank.Remaining() != 0 {
		return malformed("excess characters in the charBank of %q", cs)
	}
	assem.EndDocument()
	normalized := Pack(unpacked.OldLen, calcNewLen, assem.String(), unpacked.CharBank)
	if normalized != cs {
		return malformed("not in canonical form: %q, expected %q", cs, normalized)
	}
	return nil
}

// Identity returns the changeset that leaves a document of length n
// unchanged.
func Identity(n int) string {
	return Pack(n, n, "", "")
}

func IsIdentity(cs string) (bool, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return false, err
	}
	return unpacked.Ops == "" && unpacked.OldLen == unpacked.NewLen, nil
}

func ApplyToText(cs string, text string) (string, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return "", err
	}
	if n := utils.RuneCount(text); n != unpacked.OldLen {
		return "", &PreconditionError{Op: "apply", Expected: unpacked.OldLen, Actual: n}
	}
	bankIter := NewStringIterator(unpacked.CharBank)
	strIter := NewStringIterator(text)
	var assem strings.Builder

	iter := NewOpIterator(unpacked.Ops, 0)
	for iter.HasNext() {
		op, err := iter.Next()
		if err != nil {
			return "", err
		}
		switch op.OpCode {
		case "+":
			s, err := bankIter.Take(op.Chars)
			if err != nil {
				return "", err
			}
			if strings.Count(s, "\n") != op.Lines {
				return "", malformed("newline count is wrong in op +; cs:%s and text:%q", cs, text)
			}
			assem.WriteString(s)
		case "-":
			s, err := strIter.Take(op.Chars)
			if err != nil {
				return "", err
			}
			if strings.Count(s, "\n") != op.Lines {
				return "", malformed("newline count is wrong in op -; cs:%s and text:%q", cs, text)
			}
		case "=":
			s, err := strIter.Take(op.Chars)
			if err != nil {
				return "", err
			}
			if strings.Count(s, "\n") != op.Lines {
				return "", malformed("newline count is wrong in op =; cs:%s and text:%q", cs, text)
			}
			assem.WriteString(s)
		}
	}
	rest, _ := strIter.Take(strIter.Remaining())
	assem.WriteString(rest)
	return assem.String(), nil
}

// OpsFromText returns the ops covering text: one op up to and including the
// last newline and one for the remainder. The second op may be empty.
func OpsFromText(opcode string, text string, attribs AttribArgs, pool *apool.APool) ([]Op, error) {
	op := NewOp(opcode)
	var err error
	op.Attribs, err = attribs.attribString(opcode, pool)
	if err != nil {
		return nil, err
	}
	lastNewlinePos := utils.RuneLastIndex(text, "\n")
	if lastNewlinePos < 0 {
		op.Chars = utils.RuneCount(text)
		op.Lines = 0
		return []Op{op}, nil
	}
	op.Chars = lastNewlinePos + 1
	op.Lines = strings.Count(text, "\n")
	op2 := op
	op2.Chars = utils.RuneCount(text) - (lastNewlinePos + 1)
	op2.Lines = 0
	return []Op{op, op2}, nil
}

// MakeSplice builds the changeset that removes ndel characters at start and
// inserts ins there. Out of range arguments are clamped to the text.
func MakeSplice(orig string, start int, ndel int, ins string, attribs AttribArgs, pool *apool.APool) (string, error) {
	if start < 0 {
		return "", fmt.Errorf("start index must be non-negative (is %d)", start)
	}
	if ndel < 0 {
		return "", fmt.Errorf("characters to delete must be non-negative (is %d)", ndel)
	}
	origRunes := []rune(orig)
	if start > len(origRunes) {
		start = len(origRunes)
	}
	if ndel > len(origRunes)-start {
		ndel = len(origRunes) - start
	}
	deleted := string(origRunes[start : start+ndel])
	assem := NewSmartOpAssembler()

	keepOps, _ := OpsFromText("=", string(origRunes[:start]), AttribArgs{}, nil)
	removeOps, _ := OpsFromText("-", deleted, AttribArgs{}, nil)
	insertOps, err := OpsFromText("+", ins, attribs, pool)
	if err != nil {
		return "", err
	}
	for _, ops := range [][]Op{keepOps, removeOps, insertOps} {
		for _, op := range ops {
			assem.Append(op)
		}
	}
	assem.EndDocument()
	return Pack(len(origRunes), len(origRunes)+utils.RuneCount(ins)-ndel, assem.String(), ins), nil
}

// SplitTextLines splits text after every newline. A trailing line without
// newline is kept.
func SplitTextLines(text string) []string {
	var lines []string
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

// MakeAttribution returns the attribution of text without any attributes.
func MakeAttribution(text string) string {
	assem := NewSmartOpAssembler()
	ops, _ := OpsFromText("+", text, AttribArgs{}, nil)
	for _, op := range ops {
		assem.Append(op)
	}
	return assem.String()
}

// MakeAText creates an AText. An empty attribs string yields a plain
// attribution of the text.
func MakeAText(text string, attribs string) apool.AText {
	if attribs == "" {
		attribs = MakeAttribution(text)
	}
	return apool.AText{
		Text:    text,
		Attribs: attribs,
	}
}

func CloneAText(atext apool.AText) apool.AText {
	return apool.AText{
		Text:    atext.Text,
		Attribs: atext.Attribs,
	}
}

func ApplyToAText(cs string, atext apool.AText, pool *apool.APool) (apool.AText, error) {
	text, err := ApplyToText(cs, atext.Text)
	if err != nil {
		return apool.AText{}, err
	}
	attribs, err := ApplyToAttribution(cs, atext.Attribs, pool)
	if err != nil {
		return apool.AText{}, err
	}
	return apool.AText{
		Text:    text,
		Attribs: attribs,
	}, nil
}

// OpsFromAText returns the ops of an AText's attribution without the
// document's final newline.
func OpsFromAText(atext apool.AText) ([]Op, error) {
	ops, err := DeserializeOps(atext.Attribs)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}
	result := make([]Op, 0, len(ops)+1)
	result = append(result, ops[:len(ops)-1]...)
	lastOp := ops[len(ops)-1]

	if lastOp.Lines <= 1 {
		lastOp.Lines = 0
		lastOp.Chars--
	} else {
		text := []rune(atext.Text)
		nextToLastNewlineEnd := lastIndexRune(text, '\n', len(text)-2) + 1
		lastLineLength := len(text) - nextToLastNewlineEnd - 1
		lastOp.Lines--
		lastOp.Chars -= lastLineLength + 1
		result = append(result, lastOp)
		lastOp.Lines = 0
		lastOp.Chars = lastLineLength
	}
	if lastOp.Chars != 0 {
		result = append(result, lastOp)
	}
	return result, nil
}

func indexRune(s []rune, r rune, from int) int {
	for i := max(from, 0); i < len(s); i++ {
		if s[i] == r {
			return i
		}
	}
	return -1
}

func lastIndexRune(s []rune, r rune, from int) int {
	for i := min(from, len(s)-1); i >= 0; i-- {
		if s[i] == r {
			return i
		}
	}
	return -1
}
