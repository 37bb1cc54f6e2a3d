package changeset

import "testing"

func TestOpAssembler_Append(t *testing.T) {
	var teststring = "a\nb\nc\n"
	ops, _ := OpsFromText("=", teststring[0:5], AttribArgs{}, nil)

	var oa = NewOpAssembler()
	oa.Append(ops[0])
	if oa.String() != "|2=4" {
		t.Error("Expected |2=4, got ", oa.String())
	}

	oa.Append(ops[1])
	if oa.String() != "|2=4=1" {
		t.Error("Expected |2=4=1, got ", oa.String())
	}
}

func TestOpAssembler_Clear(t *testing.T) {
	var teststring = "a\nb\nc\n"
	ops, _ := OpsFromText("=", teststring[0:5], AttribArgs{}, nil)

	var oa = NewOpAssembler()
	oa.Append(ops[0])
	oa.Clear()
	if oa.String() != "" {
		t.Error("Expected \"\", got ", oa.String())
	}
}

func TestOpAssembler_DoesNotMerge(t *testing.T) {
	var oa = NewOpAssembler()
	oa.Append(Op{OpCode: "+", Chars: 1})
	oa.Append(Op{OpCode: "+", Chars: 2})
	if oa.String() != "+1+2" {
		t.Error("Expected +1+2, got ", oa.String())
	}
}

func TestOpString(t *testing.T) {
	var testCases = map[string]Op{
		"+1":        {OpCode: "+", Chars: 1},
		"|2=4":      {OpCode: "=", Chars: 4, Lines: 2},
		"*0*1|z-10": {OpCode: "-", Chars: 36, Lines: 35, Attribs: "*0*1"},
		"":          {},
	}
	for expected, op := range testCases {
		if op.String() != expected {
			t.Errorf("Expected %q, got %q", expected, op.String())
		}
	}
}
