package changeset

import (
	"strings"
	"testing"

	"github.com/ether/easysync/lib/apool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assembleSmart(t *testing.T, x string) string {
	t.Helper()
	var assembler = NewSmartOpAssembler()
	ops, err := DeserializeOps(x)
	require.NoError(t, err)
	for _, op := range ops {
		assembler.Append(op)
	}
	assembler.EndDocument()
	return assembler.String()
}

func TestSmartOpAssembler_Append(t *testing.T) {
	var soa = NewSmartOpAssembler()
	for _, op := range mergingOpsForSplice(t) {
		soa.Append(op)
	}

	soa.EndDocument()
	var res = soa.String()

	if res != "|2=4=1+3" {
		t.Error("Expected |2=4=1+3, got ", res)
	}
}

func TestSmartOpAssembler_AppendBaseline(t *testing.T) {
	var x = "-c*3*4+6|3=az*asdf0*1*2*3+1=1-1+1*0+1=1-1+1|c=c-1"
	if res := assembleSmart(t, x); res != x {
		t.Error("Expected ", x, ", got ", res)
	}
}

func TestSmartOpAssembler_Merges(t *testing.T) {
	var testCases = []struct {
		name     string
		input    string
		expected string
	}{
		{"insertions with a trailing keep", "-c*3*4+6|1+1=5", "-c*3*4+6|1+1"},
		{"consecutive insertions", "-c*3*4+6*3*4+1*3*4+9=5", "-c*3*4+g"},
		{"consecutive multiline insertions", "-c*3*4+6*3*4|1+1*3*4|9+f*3*4+k=5", "-c*3*4|a+m*3*4+k"},
		{"consecutive removals", "-c-6-1-9=5", "-s"},
		{"consecutive multiline removals", "-c-6|1-1|9-f-k=5", "|a-y-k"},
		{"consecutive keeps", "-c*3*4=6*2*4=1*3*4=f*3*4=2*3*4=a=k=5", "-c*3*4=6*2*4=1*3*4=r"},
		{"consecutive multiline keeps", "-c*3*4=6*2*4|1=1*3*4|9=f*3*4|2=2*3*4=a*3*4=1=k=5", "-c*3*4=6*2*4|1=1*3*4|b=h*3*4=b"},
		{"zero length insertions", "-c*3*4+6*3*4+0*3*4+1+0*3*4+1", "-c*3*4+8"},
		{"zero length removals", "-c-6-0-1-0-1", "-k"},
		{"removals are moved before insertions", "+1-1+2-2=1", "-3+3"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, assembleSmart(t, tc.input))
		})
	}
}

func TestSmartAssembler_Clear_Should_Empty_Internal_Assembler(t *testing.T) {
	const x = "-c*3*4+6|3=az*asdf0*1*2*3+1=1-1+1*0+1=1-1+1|c=c-1"

	ops, err := DeserializeOps(x)
	require.NoError(t, err)

	var assembler = NewSmartOpAssembler()
	for _, op := range ops[:3] {
		assembler.Append(op)
	}
	assembler.Clear()
	for _, op := range ops[3:5] {
		assembler.Append(op)
	}
	assembler.Clear()
	for _, op := range ops[5:] {
		assembler.Append(op)
	}

	assembler.EndDocument()
	if assembler.String() != "-1+1*0+1=1-1+1|c=c-1" {
		t.Error("Expected -1+1*0+1=1-1+1|c=c-1, got ", assembler.String())
	}
}

func attribPool(attribs ...string) *apool.APool {
	var pool = apool.NewAPool()
	for _, attrib := range attribs {
		key, value, _ := strings.Cut(attrib, ",")
		pool.PutAttrib(apool.Attribute{Key: key, Value: value}, false)
	}
	return pool
}

func TestSmartOpAssembler_AppendOpWithText(t *testing.T) {
	pool := attribPool("attr1,1", "attr2,2", "attr3,3", "attr4,4", "attr5,5")
	assem := NewSmartOpAssembler()
	require.NoError(t, assem.AppendOpWithText("+", "test", EncodedAttribs("*3*4*5"), pool))
	require.NoError(t, assem.AppendOpWithText("+", "test", EncodedAttribs("*3*4*5"), pool))
	require.NoError(t, assem.AppendOpWithText("+", "test", EncodedAttribs("*1*4*5"), pool))
	assem.EndDocument()
	assert.Equal(t, "*3*4*5+8*1*4*5+4", assem.String())
	assert.Equal(t, 12, assem.LengthChange())
}

func TestSmartOpAssembler_AppendOpWithMultilineText(t *testing.T) {
	pool := attribPool("attr1,1", "attr2,2", "attr3,3", "attr4,4", "attr5,5")
	assem := NewSmartOpAssembler()
	require.NoError(t, assem.AppendOpWithText("+", "test\ntest", EncodedAttribs("*3*4*5"), pool))
	require.NoError(t, assem.AppendOpWithText("+", "\ntest\n", EncodedAttribs("*3*4*5"), pool))
	require.NoError(t, assem.AppendOpWithText("+", "\ntest", EncodedAttribs("*1*4*5"), pool))
	assem.EndDocument()
	assert.Equal(t, "*3*4*5|3+f*1*4*5|1+1*1*4*5+4", assem.String())
}

func testAppendATextToAssembler(t *testing.T, testId int, atext apool.AText, correctOps string) {
	var assembler = NewSmartOpAssembler()
	ops, err := OpsFromAText(atext)
	if err != nil {
		t.Fatalf("Test %d: %v", testId, err)
	}

	for _, op := range ops {
		assembler.Append(op)
	}
	if assembler.String() != correctOps {
		t.Errorf("Test %d: Expected %s, got %s", testId, correctOps, assembler.String())
	}
}

func TestAppendATextToAssembler(t *testing.T) {
	testAppendATextToAssembler(t, 1, apool.AText{Text: "\n", Attribs: "|1+1"}, "")
	testAppendATextToAssembler(t, 2, apool.AText{Text: "\n\n", Attribs: "|2+2"}, "|1+1")
	testAppendATextToAssembler(t, 3, apool.AText{Text: "\n\n", Attribs: "*x|2+2"}, "*x|1+1")
	testAppendATextToAssembler(t, 4, apool.AText{Text: "\n\n", Attribs: "*x|1+1|1+1"}, "*x|1+1")
	testAppendATextToAssembler(t, 5, apool.AText{Text: "foo\n", Attribs: "|1+4"}, "+3")
	testAppendATextToAssembler(t, 6, apool.AText{Text: "\nfoo\n", Attribs: "|2+5"}, "|1+1+3")
	testAppendATextToAssembler(t, 7, apool.AText{Text: "\nfoo\n", Attribs: "*x|2+5"}, "*x|1+1*x+3")
	testAppendATextToAssembler(t, 8, apool.AText{Text: "\n\n\nfoo\n", Attribs: "|2+2*x|2+5"}, "|2+2*x|1+1*x+3")
}
