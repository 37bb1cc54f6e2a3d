package changeset

import (
	"fmt"
	"testing"

	"github.com/ether/easysync/lib/apool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterAttribNumbers(t *testing.T) {
	const cs = "*0*1+1+2+3*1+4*2+5*0*2*1*b*c+6"

	even := FilterAttribNumbers(cs, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, "*0+1+2+3+4*2+5*0*2*c+6", even)

	odd := FilterAttribNumbers(cs, func(n int) bool { return n%2 == 1 })
	assert.Equal(t, "*1+1+2+3*1+4+5*1*b+6", odd)
}

func TestMapAttribNumbersLeavesCharBankAlone(t *testing.T) {
	res := MapAttribNumbers("Z:1>2*1+2$*1", func(n int) (int, bool) { return n + 1, true })
	assert.Equal(t, "Z:1>2*2+2$*1", res)
}

func TestMoveOpsToNewPool(t *testing.T) {
	var pool1 = createPool([]string{"baz,qux", "foo,bar"})
	var pool2 = createPool([]string{"foo,bar"})

	var changesetMoved = MoveOpsToNewPool("Z:1>2*1+1*0+1$ab", pool1, pool2)
	if changesetMoved != "Z:1>2*0+1*1+1$ab" {
		t.Error("Expected Z:1>2*0+1*1+1$ab, got ", changesetMoved)
	}

	var changesetMoved2 = MoveOpsToNewPool("*1+1*0+1", pool1, pool2)
	if changesetMoved2 != "*0+1*1+1" {
		t.Error("Expected *0+1*1+1, got ", changesetMoved2)
	}
}

func TestMoveOpsToNewPoolDropsUnknownAttributes(t *testing.T) {
	var pool1 = createPool([]string{"foo,bar"})
	var pool2 = apool.NewAPool()

	assert.Equal(t, "*0+1+1", MoveOpsToNewPool("*0+1*5+1", pool1, pool2))
}

func TestPrepareForWire(t *testing.T) {
	pool := createPool([]string{"baz,qux", "foo,bar", "unused,x"})

	prepared := PrepareForWire("Z:1>2*1+1*0+1$ab", pool)
	assert.Equal(t, "Z:1>2*0+1*1+1$ab", prepared.Translated)

	attrib, err := prepared.Pool.GetAttrib(0)
	require.NoError(t, err)
	assert.Equal(t, apool.Attribute{Key: "foo", Value: "bar"}, *attrib)
	assert.Equal(t, 2, prepared.Pool.NextNum)
}

func TestMakeAttribsString(t *testing.T) {
	tests := []struct {
		pool     []string
		opcode   string
		attribs  []apool.Attribute
		expected string
	}{
		{[]string{"bold,"}, "+", []apool.Attribute{{Key: "bold", Value: ""}}, ""},
		{[]string{"abc,def", "bold,"}, "=", []apool.Attribute{{Key: "bold", Value: ""}}, "*1"},
		{[]string{"abc,def", "bold,true"}, "+", []apool.Attribute{{Key: "abc", Value: "def"}, {Key: "bold", Value: "true"}}, "*0*1"},
		{[]string{"abc,def", "bold,true"}, "+", []apool.Attribute{{Key: "bold", Value: "true"}, {Key: "abc", Value: "def"}}, "*0*1"},
		{[]string{"bold,true"}, "-", []apool.Attribute{{Key: "bold", Value: "true"}}, ""},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("testMakeAttribsString#%d", i+1), func(t *testing.T) {
			got, err := MakeAttribsString(tt.opcode, AttribPairs(tt.attribs...), createPool(tt.pool))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	got, err := MakeAttribsString("=", EncodedAttribs("*3"), nil)
	require.NoError(t, err)
	assert.Equal(t, "*3", got)
}

func TestOpAttributeValue(t *testing.T) {
	p := createPool([]string{"name,david", "color,green"})

	stringOp := func(str string) Op {
		ops, err := DeserializeOps(str)
		require.NoError(t, err)
		return ops[0]
	}

	assert.Equal(t, "david", OpAttributeValue(stringOp("*0*1+1"), "name", p))
	assert.Equal(t, "david", OpAttributeValue(stringOp("*0+1"), "name", p))
	assert.Equal(t, "", OpAttributeValue(stringOp("*1+1"), "name", p))
	assert.Equal(t, "", OpAttributeValue(stringOp("+1"), "name", p))
	assert.Equal(t, "green", OpAttributeValue(stringOp("*0*1+1"), "color", p))
	assert.Equal(t, "green", OpAttributeValue(stringOp("*1+1"), "color", p))
	assert.Equal(t, "", OpAttributeValue(stringOp("*0+1"), "color", p))
	assert.Equal(t, "", OpAttributeValue(stringOp("+1"), "color", p))
}
