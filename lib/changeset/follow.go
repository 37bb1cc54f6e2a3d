package changeset

import (
	"strings"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/utils"
)

// Follow transforms cs1 so that it applies after cs2. Both changesets must be
// based on the same document, and
//
//	Compose(cs2, Follow(cs1, cs2, false)) == Compose(cs1, Follow(cs2, cs1, true))
//
// When both insert at the same position the tie is broken by the
// insertorder attribute, then by avoiding to split lines and finally by
// reverseInsertOrder: without it the text of cs2 goes first.
func Follow(cs1, cs2 string, reverseInsertOrder bool, pool *apool.APool) (string, error) {
	// stream 1 is the applied cs2, stream 2 the rebased cs1
	unpacked1, err := Unpack(cs2)
	if err != nil {
		return "", err
	}
	unpacked2, err := Unpack(cs1)
	if err != nil {
		return "", err
	}
	if unpacked1.OldLen != unpacked2.OldLen {
		return "", &PreconditionError{Op: "follow", Expected: unpacked1.OldLen, Actual: unpacked2.OldLen}
	}
	chars1 := NewStringIterator(unpacked1.CharBank)
	chars2 := NewStringIterator(unpacked2.CharBank)

	oldLen := unpacked1.NewLen
	oldPos := 0
	newLen := 0

	hasInsertFirst := AttributeTester(apool.Attribute{Key: "insertorder", Value: "first"}, pool)

	newOps, err := ApplyZip(unpacked1.Ops, unpacked2.Ops, func(op1, op2 *Op) (Op, error) {
		var opOut Op
		switch {
		case op1.OpCode == "+" || op2.OpCode == "+":
			whichToDo := 1
			if op2.OpCode != "+" {
				whichToDo = 1
			} else if op1.OpCode != "+" {
				whichToDo = 2
			} else {
				firstChar1, err := chars1.Peek(1)
				if err != nil {
					return Op{}, err
				}
				firstChar2, err := chars2.Peek(1)
				if err != nil {
					return Op{}, err
				}
				insertFirst1 := hasInsertFirst(op1.Attribs)
				insertFirst2 := hasInsertFirst(op2.Attribs)
				switch {
				case insertFirst1 && !insertFirst2:
					whichToDo = 1
				case insertFirst2 && !insertFirst1:
					whichToDo = 2
				case firstChar1 == "\n" && firstChar2 != "\n":
					// insert the text that doesn't start with a newline first so as not to break up lines
					whichToDo = 2
				case firstChar1 != "\n" && firstChar2 == "\n":
					whichToDo = 1
				case reverseInsertOrder:
					whichToDo = 2
				default:
					whichToDo = 1
				}
			}
			if whichToDo == 1 {
				if err := chars1.Skip(op1.Chars); err != nil {
					return Op{}, err
				}
				opOut.OpCode = "="
				opOut.Lines = op1.Lines
				opOut.Chars = op1.Chars
				op1.OpCode = ""
			} else {
				if err := chars2.Skip(op2.Chars); err != nil {
					return Op{}, err
				}
				opOut = *op2
				op2.OpCode = ""
			}
		case op1.OpCode == "-":
			if op2.OpCode == "" {
				op1.OpCode = ""
			} else if op1.Chars <= op2.Chars {
				op2.Chars -= op1.Chars
				op2.Lines -= op1.Lines
				op1.OpCode = ""
				if op2.Chars == 0 {
					op2.OpCode = ""
				}
			} else {
				op1.Chars -= op2.Chars
				op1.Lines -= op2.Lines
				op2.OpCode = ""
			}
		case op2.OpCode == "-":
			opOut = *op2
			if op1.OpCode == "" {
				op2.OpCode = ""
			} else if op2.Chars <= op1.Chars {
				// delete part or all of a keep
				op1.Chars -= op2.Chars
				op1.Lines -= op2.Lines
				op2.OpCode = ""
				if op1.Chars == 0 {
					op1.OpCode = ""
				}
			} else {
				// delete all of a keep, and keep going
				opOut.Lines = op1.Lines
				opOut.Chars = op1.Chars
				op2.Lines -= op1.Lines
				op2.Chars -= op1.Chars
				op1.OpCode = ""
			}
		case op1.OpCode == "":
			opOut = *op2
			op2.OpCode = ""
		case op2.OpCode == "":
			// op1's attributes must not leak into the result
			op1.OpCode = ""
		default:
			// both keeps
			opOut.OpCode = "="
			attribs, err := FollowAttributes(op1.Attribs, op2.Attribs, pool)
			if err != nil {
				return Op{}, err
			}
			opOut.Attribs = attribs
			if op1.Chars <= op2.Chars {
				opOut.Chars = op1.Chars
				opOut.Lines = op1.Lines
				op2.Chars -= op1.Chars
				op2.Lines -= op1.Lines
				op1.OpCode = ""
				if op2.Chars == 0 {
					op2.OpCode = ""
				}
			} else {
				opOut.Chars = op2.Chars
				opOut.Lines = op2.Lines
				op1.Chars -= op2.Chars
				op1.Lines -= op2.Lines
				op2.OpCode = ""
			}
		}
		switch opOut.OpCode {
		case "=":
			oldPos += opOut.Chars
			newLen += opOut.Chars
		case "-":
			oldPos += opOut.Chars
		case "+":
			newLen += opOut.Chars
		}
		return opOut, nil
	})
	if err != nil {
		return "", err
	}
	newLen += oldLen - oldPos

	return Pack(oldLen, newLen, newOps, unpacked2.CharBank), nil
}

// FollowAttributes merges two sets of attribute changes to the same text.
// For a key present in both the lexically earlier value wins. The result is
// the change to apply on top of att1.
func FollowAttributes(att1, att2 string, pool *apool.APool) (string, error) {
	if att2 == "" || pool == nil {
		return "", nil
	}
	if att1 == "" {
		return att2, nil
	}
	nums2, err := DecodeAttribString(att2)
	if err != nil {
		return "", err
	}
	var keys []string
	atts := make(map[string]string)
	for _, num := range nums2 {
		attrib, err := pool.GetAttrib(num)
		if err != nil {
			return "", err
		}
		if _, ok := atts[attrib.Key]; !ok {
			keys = append(keys, attrib.Key)
		}
		atts[attrib.Key] = attrib.Value
	}
	nums1, err := DecodeAttribString(att1)
	if err != nil {
		return "", err
	}
	for _, num := range nums1 {
		attrib, err := pool.GetAttrib(num)
		if err != nil {
			return "", err
		}
		if val, ok := atts[attrib.Key]; ok && attrib.Value <= val {
			delete(atts, attrib.Key)
		}
	}
	// only removals happened, so the order is still canonical
	var buf strings.Builder
	for _, key := range keys {
		val, ok := atts[key]
		if !ok {
			continue
		}
		buf.WriteString("*")
		buf.WriteString(utils.NumToString(pool.PutAttrib(apool.Attribute{Key: key, Value: val}, false)))
	}
	return buf.String(), nil
}

// AttributeTester returns a predicate reporting whether an attribute string
// contains the given attribute. It never matches if the attribute is not in
// the pool.
func AttributeTester(attrib apool.Attribute, pool *apool.APool) func(attribs string) bool {
	never := func(string) bool { return false }
	if pool == nil {
		return never
	}
	attribNum := pool.PutAttrib(attrib, true)
	if attribNum < 0 {
		return never
	}
	token := "*" + utils.NumToString(attribNum)
	return func(attribs string) bool {
		rest := attribs
		for {
			i := strings.Index(rest, token)
			if i < 0 {
				return false
			}
			end := i + len(token)
			if end == len(rest) || !isWordChar(rest[end]) {
				return true
			}
			rest = rest[end:]
		}
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Splice replaces the text between Start and End of the old document with
// Text.
type Splice struct {
	Start int
	End   int
	Text  string
}

// ToSplices lists the replacements a changeset performs.
func ToSplices(cs string) ([]Splice, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return nil, err
	}
	var splices []Splice
	oldPos := 0
	charIter := NewStringIterator(unpacked.CharBank)
	inSplice := false

	iter := NewOpIterator(unpacked.Ops, 0)
	for iter.HasNext() {
		op, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if op.OpCode == "=" {
			oldPos += op.Chars
			inSplice = false
			continue
		}
		if !inSplice {
			splices = append(splices, Splice{Start: oldPos, End: oldPos})
			inSplice = true
		}
		last := &splices[len(splices)-1]
		switch op.OpCode {
		case "-":
			oldPos += op.Chars
			last.End += op.Chars
		case "+":
			text, err := charIter.Take(op.Chars)
			if err != nil {
				return nil, err
			}
			last.Text += text
		}
	}
	return splices, nil
}

// CharacterRangeFollow moves the character range [startChar, endChar) of the
// old document to where it ends up after applying cs. With insertionsAfter a
// range that is replaced collapses to the start of the insertion instead of
// its end.
func CharacterRangeFollow(cs string, startChar, endChar int, insertionsAfter bool) (int, int, error) {
	newStartChar := startChar
	newEndChar := endChar
	lengthChangeSoFar := 0
	splices, err := ToSplices(cs)
	if err != nil {
		return 0, 0, err
	}
	for _, splice := range splices {
		spliceStart := splice.Start + lengthChangeSoFar
		spliceEnd := splice.End + lengthChangeSoFar
		newTextLength := utils.RuneCount(splice.Text)
		thisLengthChange := newTextLength - (spliceEnd - spliceStart)

		switch {
		case spliceStart <= newStartChar && spliceEnd >= newEndChar:
			// splice fully replaces/deletes range
			// (also case that handles insertion at a collapsed selection)
			if insertionsAfter {
				newStartChar = spliceStart
			} else {
				newStartChar = spliceStart + newTextLength
			}
			newEndChar = newStartChar
		case spliceEnd <= newStartChar:
			// splice is before range
			newStartChar += thisLengthChange
			newEndChar += thisLengthChange
		case spliceStart >= newEndChar:
			// splice is after range
		case spliceStart >= newStartChar && spliceEnd <= newEndChar:
			// splice is inside range
			newEndChar += thisLengthChange
		case spliceEnd < newEndChar:
			// splice overlaps beginning of range
			newStartChar = spliceStart + newTextLength
			newEndChar += thisLengthChange
		default:
			// splice overlaps end of range
			newEndChar = spliceStart
		}

		lengthChangeSoFar += thisLengthChange
	}
	return newStartChar, newEndChar, nil
}
