package changeset

import (
	"strings"

	"github.com/ether/easysync/lib/apool"
)

// inverter walks the text and attribution lines a changeset applies to.
type inverter struct {
	lines  []string
	alines []string

	curLine        int
	curChar        int
	curLineOps     *OpIterator
	curLineOpsLine int
	curLineNextOp  Op
}

func (inv *inverter) alinesGet(idx int) (string, error) {
	if idx < 0 || idx >= len(inv.alines) {
		return "", malformed("attribution line %d out of range", idx)
	}
	return inv.alines[idx], nil
}

func (inv *inverter) linesGet(idx int) (string, error) {
	if idx < 0 || idx >= len(inv.lines) {
		return "", malformed("line %d out of range", idx)
	}
	return inv.lines[idx], nil
}

func (inv *inverter) consumeAttribRuns(numChars int, fn func(length int, attribs string, endsLine bool)) error {
	if inv.curLineOps == nil || inv.curLineOpsLine != inv.curLine {
		aline, err := inv.alinesGet(inv.curLine)
		if err != nil {
			return err
		}
		inv.curLineOps = NewOpIterator(aline, 0)
		inv.curLineOpsLine = inv.curLine
		indexIntoLine := 0
		for inv.curLineOps.HasNext() {
			if inv.curLineNextOp, err = inv.curLineOps.Next(); err != nil {
				return err
			}
			if indexIntoLine+inv.curLineNextOp.Chars >= inv.curChar {
				inv.curLineNextOp.Chars -= inv.curChar - indexIntoLine
				break
			}
			indexIntoLine += inv.curLineNextOp.Chars
		}
	}

	for numChars > 0 {
		if inv.curLineNextOp.Chars == 0 && !inv.curLineOps.HasNext() {
			inv.curLine++
			inv.curChar = 0
			inv.curLineOpsLine = inv.curLine
			inv.curLineNextOp.Chars = 0
			aline, err := inv.alinesGet(inv.curLine)
			if err != nil {
				return err
			}
			inv.curLineOps = NewOpIterator(aline, 0)
		}
		if inv.curLineNextOp.Chars == 0 {
			op, err := inv.curLineOps.Next()
			if err != nil {
				return err
			}
			inv.curLineNextOp = op
		}
		charsToUse := min(numChars, inv.curLineNextOp.Chars)
		if charsToUse == 0 {
			return malformed("attribution line %d is shorter than its text", inv.curLine)
		}
		fn(charsToUse, inv.curLineNextOp.Attribs, charsToUse == inv.curLineNextOp.Chars && inv.curLineNextOp.Lines > 0)
		numChars -= charsToUse
		inv.curLineNextOp.Chars -= charsToUse
		inv.curChar += charsToUse
	}

	if inv.curLineNextOp.Chars == 0 && !inv.curLineOps.HasNext() {
		inv.curLine++
		inv.curChar = 0
	}
	return nil
}

func (inv *inverter) skip(N, L int) error {
	if L > 0 {
		inv.curLine += L
		inv.curChar = 0
		return nil
	}
	if inv.curLineOps != nil && inv.curLineOpsLine == inv.curLine {
		return inv.consumeAttribRuns(N, func(int, string, bool) {})
	}
	inv.curChar += N
	return nil
}

func (inv *inverter) nextText(numChars int) ([]rune, error) {
	first, err := inv.linesGet(inv.curLine)
	if err != nil {
		return nil, err
	}
	firstRunes := []rune(first)
	var assem strings.Builder
	assem.WriteString(string(firstRunes[min(inv.curChar, len(firstRunes)):]))
	length := len(firstRunes) - min(inv.curChar, len(firstRunes))

	for lineNum := inv.curLine + 1; length < numChars; lineNum++ {
		next, err := inv.linesGet(lineNum)
		if err != nil {
			return nil, err
		}
		assem.WriteString(next)
		length += len([]rune(next))
	}

	text := []rune(assem.String())
	return text[:numChars], nil
}

// Inverse returns the changeset that undoes cs. lines and alines are the
// text and attribution lines of the document cs applies to, each including
// its final newline.
func Inverse(cs string, lines []string, alines []string, pool *apool.APool) (string, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return "", err
	}
	inv := &inverter{
		lines:         lines,
		alines:        alines,
		curLineNextOp: NewOp("+"),
	}
	builder := NewBuilder(unpacked.NewLen)

	iter := NewOpIterator(unpacked.Ops, 0)
	for iter.HasNext() {
		csOp, err := iter.Next()
		if err != nil {
			return "", err
		}
		switch csOp.OpCode {
		case "=":
			if csOp.Attribs == "" {
				if err := inv.skip(csOp.Chars, csOp.Lines); err != nil {
					return "", err
				}
				builder.Keep(csOp.Chars, csOp.Lines, AttribArgs{}, nil)
				continue
			}
			attribs, err := FromString(csOp.Attribs, pool)
			if err != nil {
				return "", err
			}
			backCache := make(map[string]string)
			var backErr error
			undoBackToAttribs := func(oldAttribsStr string) string {
				if back, ok := backCache[oldAttribsStr]; ok {
					return back
				}
				oldAttribs, err := FromString(oldAttribsStr, pool)
				if err != nil {
					backErr = err
					return ""
				}
				backAttribs := NewAttributeMap(pool)
				for _, attrib := range attribs.Entries() {
					if oldValue := oldAttribs.Get(attrib.Key); oldValue != attrib.Value {
						backAttribs.Set(attrib.Key, oldValue)
					}
				}
				// keys only present in oldAttribs are left untouched
				back := backAttribs.String()
				backCache[oldAttribsStr] = back
				return back
			}
			err = inv.consumeAttribRuns(csOp.Chars, func(length int, attribs string, endsLine bool) {
				l := 0
				if endsLine {
					l = 1
				}
				builder.Keep(length, l, EncodedAttribs(undoBackToAttribs(attribs)), nil)
			})
			if err != nil {
				return "", err
			}
			if backErr != nil {
				return "", backErr
			}
		case "+":
			builder.Remove(csOp.Chars, csOp.Lines)
		case "-":
			textBank, err := inv.nextText(csOp.Chars)
			if err != nil {
				return "", err
			}
			textBankIndex := 0
			err = inv.consumeAttribRuns(csOp.Chars, func(length int, attribs string, _ bool) {
				builder.Insert(string(textBank[textBankIndex:textBankIndex+length]), EncodedAttribs(attribs), nil)
				textBankIndex += length
			})
			if err != nil {
				return "", err
			}
		}
	}

	result, err := builder.ToString()
	if err != nil {
		return "", err
	}
	if err := CheckRep(result); err != nil {
		return "", err
	}
	return result, nil
}
