package changeset

import (
	"github.com/ether/easysync/lib/apool"
)

// MutateTextLines applies a changeset to a document given as lines. The
// lines are modified in place.
func MutateTextLines(cs string, lines *[]string) error {
	unpacked, err := Unpack(cs)
	if err != nil {
		return err
	}
	bankIter := NewStringIterator(unpacked.CharBank)
	mut := NewTextLinesMutator(lines)
	iter := NewOpIterator(unpacked.Ops, 0)
	for iter.HasNext() {
		op, err := iter.Next()
		if err != nil {
			return err
		}
		switch op.OpCode {
		case "+":
			text, err := bankIter.Take(op.Chars)
			if err != nil {
				return err
			}
			mut.Insert(text, op.Lines)
		case "-":
			mut.Remove(op.Chars, op.Lines)
		case "=":
			mut.Skip(op.Chars, op.Lines, op.Attribs != "")
		}
	}
	mut.Close()
	return nil
}

// MutateAttributionLines applies a changeset to the attribution lines of a
// document. The lines are modified in place.
func MutateAttributionLines(cs string, lines *[]string, pool *apool.APool) error {
	unpacked, err := Unpack(cs)
	if err != nil {
		return err
	}
	csIter := NewOpIterator(unpacked.Ops, 0)
	csBank := []rune(unpacked.CharBank)
	csBankIndex := 0
	// the attribution lines are treated as text lines, mutating a line at a time
	mut := NewTextLinesMutator(lines)

	var lineIter *OpIterator
	lineOpsHasNext := func() bool {
		return lineIter != nil && lineIter.HasNext()
	}
	isNextMutOp := func() bool {
		return lineOpsHasNext() || mut.HasMore()
	}
	nextMutOp := func() (Op, error) {
		if !lineOpsHasNext() && mut.HasMore() {
			line := mut.RemoveLines(1)
			lineIter = NewOpIterator(line, 0)
		}
		if !lineOpsHasNext() {
			return Op{}, nil
		}
		return lineIter.Next()
	}

	var lineAssem *MergingOpAssembler
	outputMutOp := func(op Op) error {
		if lineAssem == nil {
			lineAssem = NewMergingOpAssembler()
		}
		lineAssem.Append(op)
		if op.Lines <= 0 {
			return nil
		}
		if op.Lines != 1 {
			return malformed("can't have op.lines of %d in attribution lines", op.Lines)
		}
		mut.Insert(lineAssem.String(), 1)
		lineAssem = nil
		return nil
	}

	var csOp, attOp Op
	for csOp.OpCode != "" || csIter.HasNext() || attOp.OpCode != "" || isNextMutOp() {
		if csOp.OpCode == "" && csIter.HasNext() {
			if csOp, err = csIter.Next(); err != nil {
				return err
			}
		}
		if csOp.OpCode == "" && attOp.OpCode == "" && lineAssem == nil && !lineOpsHasNext() {
			break
		} else if csOp.OpCode == "=" && csOp.Lines > 0 && csOp.Attribs == "" && attOp.OpCode == "" &&
			lineAssem == nil && !lineOpsHasNext() {
			// skipping unattributed lines keeps small changes independent of
			// the document size
			mut.SkipLines(csOp.Lines, false)
			csOp.OpCode = ""
		} else if csOp.OpCode == "+" {
			opOut := csOp
			if csOp.Lines > 1 {
				firstLineLen := indexRune(csBank, '\n', csBankIndex) + 1 - csBankIndex
				if firstLineLen <= 0 {
					return malformed("insertion claims more lines than its text has in %q", cs)
				}
				csOp.Chars -= firstLineLen
				csOp.Lines--
				opOut.Lines = 1
				opOut.Chars = firstLineLen
			} else {
				csOp.OpCode = ""
			}
			if err := outputMutOp(opOut); err != nil {
				return err
			}
			csBankIndex += opOut.Chars
		} else {
			if attOp.OpCode == "" && isNextMutOp() {
				if attOp, err = nextMutOp(); err != nil {
					return err
				}
			}
			opOut, err := SlicerZipperFunc(&attOp, &csOp, pool)
			if err != nil {
				return err
			}
			if opOut.OpCode != "" {
				if err := outputMutOp(opOut); err != nil {
					return err
				}
			}
		}
	}

	if lineAssem != nil {
		return malformed("line assembler not finished: %s", cs)
	}
	mut.Close()
	return nil
}

// JoinAttributionLines concatenates attribution lines into one attribution
// string.
func JoinAttributionLines(alines []string) (string, error) {
	assem := NewMergingOpAssembler()
	for _, aline := range alines {
		iter := NewOpIterator(aline, 0)
		for iter.HasNext() {
			op, err := iter.Next()
			if err != nil {
				return "", err
			}
			assem.Append(op)
		}
	}
	return assem.String(), nil
}

// SplitAttributionLines cuts an attribution string into one attribution
// string per line of text. Ops after the last newline are dropped.
func SplitAttributionLines(attrOps string, text string) ([]string, error) {
	textRunes := []rune(text)
	assem := NewMergingOpAssembler()
	var lines []string
	pos := 0

	appendOp := func(op Op) {
		assem.Append(op)
		if op.Lines > 0 {
			lines = append(lines, assem.String())
			assem.Clear()
		}
		pos += op.Chars
	}

	iter := NewOpIterator(attrOps, 0)
	for iter.HasNext() {
		op, err := iter.Next()
		if err != nil {
			return nil, err
		}
		numChars := op.Chars
		numLines := op.Lines
		for numLines > 1 {
			newlineEnd := indexRune(textRunes, '\n', pos) + 1
			if newlineEnd <= 0 {
				return nil, malformed("attribution has more lines than the text")
			}
			op.Chars = newlineEnd - pos
			op.Lines = 1
			appendOp(op)
			numChars -= op.Chars
			numLines -= op.Lines
		}
		if numLines == 1 {
			op.Chars = numChars
			op.Lines = 1
		}
		appendOp(op)
	}

	return lines, nil
}

// Subattribution returns the part of a single-line attribution string between
// start and end. A nil end means up to the end of the line.
func Subattribution(astr string, start int, end *int) (string, error) {
	attIter := NewOpIterator(astr, 0)
	assem := NewSmartOpAssembler()
	var attOp, csOp Op

	doCsOp := func() error {
		if csOp.Chars == 0 {
			return nil
		}
		for csOp.OpCode != "" && (attOp.OpCode != "" || attIter.HasNext()) {
			if attOp.OpCode == "" {
				var err error
				if attOp, err = attIter.Next(); err != nil {
					return err
				}
			}
			if csOp.OpCode != "" && attOp.OpCode != "" && csOp.Chars >= attOp.Chars &&
				attOp.Lines > 0 && csOp.Lines <= 0 {
				csOp.Lines++
			}
			opOut, err := SlicerZipperFunc(&attOp, &csOp, nil)
			if err != nil {
				return err
			}
			if opOut.OpCode != "" {
				assem.Append(opOut)
			}
		}
		return nil
	}

	csOp.OpCode = "-"
	csOp.Chars = start

	if err := doCsOp(); err != nil {
		return "", err
	}

	if end == nil {
		if attOp.OpCode != "" {
			assem.Append(attOp)
		}
		for attIter.HasNext() {
			op, err := attIter.Next()
			if err != nil {
				return "", err
			}
			assem.Append(op)
		}
	} else {
		csOp.OpCode = "="
		csOp.Chars = *end - start
		if err := doCsOp(); err != nil {
			return "", err
		}
	}

	return assem.String(), nil
}
