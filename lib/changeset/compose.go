package changeset

import (
	"github.com/ether/easysync/lib/apool"
)

// ZipFunc consumes (part of) op1 and op2 and returns the resulting op. It
// marks consumed ops by clearing their opcode.
type ZipFunc func(op1, op2 *Op) (Op, error)

// ApplyZip walks two op streams in lockstep and assembles the ops returned by
// fn into a canonical op stream.
func ApplyZip(in1 string, in2 string, fn ZipFunc) (string, error) {
	iter1 := NewOpIterator(in1, 0)
	iter2 := NewOpIterator(in2, 0)
	assem := NewSmartOpAssembler()

	var op1, op2 Op
	var err error
	for {
		if op1.OpCode == "" {
			if op1, err = iter1.Next(); err != nil {
				return "", err
			}
		}
		if op2.OpCode == "" {
			if op2, err = iter2.Next(); err != nil {
				return "", err
			}
		}
		if op1.OpCode == "" && op2.OpCode == "" {
			break
		}
		opOut, err := fn(&op1, &op2)
		if err != nil {
			return "", err
		}
		if opOut.OpCode != "" {
			assem.Append(opOut)
		}
	}
	assem.EndDocument()
	return assem.String(), nil
}

// SlicerZipperFunc applies the changeset op csOp to the attribution op attOp.
// Whichever op is shorter is consumed completely; the other one is shortened.
func SlicerZipperFunc(attOp, csOp *Op, pool *apool.APool) (Op, error) {
	var opOut Op
	switch {
	case attOp.OpCode == "":
		opOut = *csOp
		csOp.OpCode = ""
	case csOp.OpCode == "":
		opOut = *attOp
		attOp.OpCode = ""
	case attOp.OpCode == "-":
		opOut = *attOp
		attOp.OpCode = ""
	case csOp.OpCode == "+":
		opOut = *csOp
		csOp.OpCode = ""
	default:
		for _, op := range []*Op{attOp, csOp} {
			if op.Chars < op.Lines {
				return Op{}, malformed("op has more newlines than chars: %s", op)
			}
		}
		var linesOk bool
		switch {
		case attOp.Chars < csOp.Chars:
			linesOk = attOp.Lines <= csOp.Lines
		case attOp.Chars > csOp.Chars:
			linesOk = attOp.Lines >= csOp.Lines
		default:
			linesOk = attOp.Lines == csOp.Lines
		}
		if !linesOk {
			return Op{}, malformed("line count mismatch when composing changesets A*B; opA: %s opB: %s", attOp, csOp)
		}
		if attOp.OpCode != "+" && attOp.OpCode != "=" {
			return Op{}, malformed("unexpected opcode in op: %s", attOp)
		}
		if csOp.OpCode != "-" && csOp.OpCode != "=" {
			return Op{}, malformed("unexpected opcode in op: %s", csOp)
		}

		switch {
		case attOp.OpCode == "+" && csOp.OpCode == "-":
			// the removal cancels out (some of) the insertion
			opOut.OpCode = ""
		case attOp.OpCode == "+":
			opOut.OpCode = "+"
		case csOp.OpCode == "-":
			opOut.OpCode = "-"
		default:
			opOut.OpCode = "="
		}

		fullyConsumedOp, partiallyConsumedOp := attOp, csOp
		if csOp.Chars < attOp.Chars {
			fullyConsumedOp, partiallyConsumedOp = csOp, attOp
		}
		opOut.Chars = fullyConsumedOp.Chars
		opOut.Lines = fullyConsumedOp.Lines
		if csOp.OpCode == "-" {
			// removals normally carry no attributes, keep them if they do
			opOut.Attribs = csOp.Attribs
		} else {
			attribs, err := ComposeAttributes(attOp.Attribs, csOp.Attribs, attOp.OpCode == "=", pool)
			if err != nil {
				return Op{}, err
			}
			opOut.Attribs = attribs
		}
		partiallyConsumedOp.Chars -= fullyConsumedOp.Chars
		partiallyConsumedOp.Lines -= fullyConsumedOp.Lines
		if partiallyConsumedOp.Chars == 0 {
			partiallyConsumedOp.OpCode = ""
		}
		fullyConsumedOp.OpCode = ""
	}
	return opOut, nil
}

// ComposeAttributes applies att2 on top of att1. If the result is a mutation
// (a keep) empty values are preserved so they can clear attributes later on.
func ComposeAttributes(att1, att2 string, resultIsMutation bool, pool *apool.APool) (string, error) {
	if att1 == "" && resultIsMutation {
		return att2, nil
	}
	if att2 == "" {
		return att1, nil
	}
	m, err := FromString(att1, pool)
	if err != nil {
		return "", err
	}
	if _, err = m.UpdateFromString(att2, !resultIsMutation); err != nil {
		return "", err
	}
	return m.String(), nil
}

// Compose returns a changeset equivalent to applying cs1 and then cs2.
func Compose(cs1, cs2 string, pool *apool.APool) (string, error) {
	unpacked1, err := Unpack(cs1)
	if err != nil {
		return "", err
	}
	unpacked2, err := Unpack(cs2)
	if err != nil {
		return "", err
	}
	len1 := unpacked1.OldLen
	len2 := unpacked1.NewLen
	if len2 != unpacked2.OldLen {
		return "", &PreconditionError{Op: "compose", Expected: len2, Actual: unpacked2.OldLen}
	}
	len3 := unpacked2.NewLen
	bankIter1 := NewStringIterator(unpacked1.CharBank)
	bankIter2 := NewStringIterator(unpacked2.CharBank)
	bankAssem := NewStringAssembler()

	newOps, err := ApplyZip(unpacked1.Ops, unpacked2.Ops, func(op1, op2 *Op) (Op, error) {
		op1code := op1.OpCode
		op2code := op2.OpCode
		if op1code == "+" && op2code == "-" {
			if err := bankIter1.Skip(min(op1.Chars, op2.Chars)); err != nil {
				return Op{}, err
			}
		}
		opOut, err := SlicerZipperFunc(op1, op2, pool)
		if err != nil {
			return Op{}, err
		}
		if opOut.OpCode == "+" {
			var s string
			if op2code == "+" {
				s, err = bankIter2.Take(opOut.Chars)
			} else {
				s, err = bankIter1.Take(opOut.Chars)
			}
			if err != nil {
				return Op{}, err
			}
			bankAssem.Append(s)
		}
		return opOut, nil
	})
	if err != nil {
		return "", err
	}
	return Pack(len1, len3, newOps, bankAssem.String()), nil
}

// ApplyToAttribution applies the changeset to an attribution string.
func ApplyToAttribution(cs string, astr string, pool *apool.APool) (string, error) {
	unpacked, err := Unpack(cs)
	if err != nil {
		return "", err
	}
	return ApplyZip(astr, unpacked.Ops, func(op1, op2 *Op) (Op, error) {
		return SlicerZipperFunc(op1, op2, pool)
	})
}
