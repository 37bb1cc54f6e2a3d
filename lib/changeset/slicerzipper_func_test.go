package changeset

import (
	"errors"
	"testing"
)

func TestWithEmptyAttOpEmpty(t *testing.T) {
	var attrOp = NewOp("")
	var csOp = NewOp("+")
	var op, err = SlicerZipperFunc(&attrOp, &csOp, createPool(nil))

	if op.OpCode != "+" || csOp.OpCode != "" || err != nil {
		t.Error("Both should be empty")
	}
}

func TestWithEmptyCsOp(t *testing.T) {
	var attrOp = NewOp("+")
	var csOp = NewOp("")
	var op, err = SlicerZipperFunc(&attrOp, &csOp, createPool(nil))

	if attrOp.OpCode != "" || err != nil || op.OpCode != "+" {
		t.Error("Opcode should be empty")
	}
}

func TestWithMinusAttOpCsOp(t *testing.T) {
	var attrOp = NewOp("-")
	var csOp = NewOp("=")
	var _, _ = SlicerZipperFunc(&attrOp, &csOp, createPool(nil))

	if attrOp.OpCode != "" {
		t.Error("Opcode should be empty")
	}
	if csOp.OpCode != "=" {
		t.Error("csOp must not be consumed")
	}
}

func TestWithPlusCSOp(t *testing.T) {
	var attrOp = NewOp("=")
	attrOp.Chars = 3
	var csOp = NewOp("+")
	csOp.Chars = 2
	var opout, _ = SlicerZipperFunc(&attrOp, &csOp, createPool(nil))

	if csOp.OpCode != "" || opout.OpCode != "+" || opout.Chars != 2 {
		t.Error("Opcode should be empty")
	}
	if attrOp.Chars != 3 {
		t.Error("attOp must not be consumed")
	}
}

func TestSlicerZipperFuncWithValues(t *testing.T) {
	pool := createPool([]string{"bold,", "bold,true"})

	tests := []struct {
		name      string
		attOp     Op
		csOp      Op
		expected  Op
		attOpLeft Op
	}{
		{
			name:     "removal cancels insertion",
			attOp:    Op{OpCode: "+", Chars: 1},
			csOp:     Op{OpCode: "-", Chars: 1},
			expected: Op{OpCode: "", Chars: 1},
		},
		{
			name:     "empty value clears attribute on insertion",
			attOp:    Op{OpCode: "+", Chars: 1, Attribs: "*1"},
			csOp:     Op{OpCode: "=", Chars: 1, Attribs: "*0"},
			expected: Op{OpCode: "+", Chars: 1},
		},
		{
			name:      "keep slices a longer insertion",
			attOp:     Op{OpCode: "+", Chars: 5, Lines: 1},
			csOp:      Op{OpCode: "=", Chars: 1, Attribs: "*1"},
			expected:  Op{OpCode: "+", Chars: 1, Attribs: "*1"},
			attOpLeft: Op{OpCode: "+", Chars: 4, Lines: 1},
		},
		{
			name:      "plain keep",
			attOp:     Op{OpCode: "+", Chars: 4, Lines: 1},
			csOp:      Op{OpCode: "=", Chars: 3},
			expected:  Op{OpCode: "+", Chars: 3},
			attOpLeft: Op{OpCode: "+", Chars: 1, Lines: 1},
		},
		{
			name:      "insertion goes first",
			attOp:     Op{OpCode: "+", Chars: 1, Lines: 1},
			csOp:      Op{OpCode: "+", Chars: 4},
			expected:  Op{OpCode: "+", Chars: 4},
			attOpLeft: Op{OpCode: "+", Chars: 1, Lines: 1},
		},
		{
			name:     "exhausted changeset",
			attOp:    Op{OpCode: "+", Chars: 1, Lines: 1},
			csOp:     Op{},
			expected: Op{OpCode: "+", Chars: 1, Lines: 1},
		},
		{
			name:     "keep on keep keeps empty values",
			attOp:    Op{OpCode: "=", Chars: 2},
			csOp:     Op{OpCode: "=", Chars: 2, Attribs: "*0"},
			expected: Op{OpCode: "=", Chars: 2, Attribs: "*0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opOut, err := SlicerZipperFunc(&tt.attOp, &tt.csOp, pool)
			if err != nil {
				t.Fatal(err)
			}
			if opOut.OpCode != tt.expected.OpCode ||
				opOut.Chars != tt.expected.Chars ||
				opOut.Lines != tt.expected.Lines ||
				opOut.Attribs != tt.expected.Attribs {
				t.Errorf("expected %+v, got %+v", tt.expected, opOut)
			}
			if tt.attOpLeft.OpCode != "" {
				if tt.attOp.OpCode != tt.attOpLeft.OpCode ||
					tt.attOp.Chars != tt.attOpLeft.Chars ||
					tt.attOp.Lines != tt.attOpLeft.Lines {
					t.Errorf("expected %+v to be left over, got %+v", tt.attOpLeft, tt.attOp)
				}
			} else if tt.attOp.OpCode != "" {
				t.Errorf("expected attOp to be consumed, got %+v", tt.attOp)
			}
		})
	}
}

func TestSlicerZipperFuncRejectsLineMismatch(t *testing.T) {
	attOp := Op{OpCode: "+", Chars: 2, Lines: 0}
	csOp := Op{OpCode: "=", Chars: 1, Lines: 1}
	_, err := SlicerZipperFunc(&attOp, &csOp, nil)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}
