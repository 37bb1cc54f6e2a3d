package changeset

import (
	"github.com/ether/easysync/lib/utils"
)

// Op is a single operation of an op stream. An empty OpCode marks an op that
// has been fully consumed.
type Op struct {
	OpCode  string
	Chars   int
	Lines   int
	Attribs string
}

func NewOp(opCode string) Op {
	return Op{
		OpCode: opCode,
	}
}

// String serializes the op as `*a*b|L<opcode>N`.
func (op Op) String() string {
	if op.OpCode == "" {
		return ""
	}
	var l string
	if op.Lines > 0 {
		l = "|" + utils.NumToString(op.Lines)
	}

	return op.Attribs + l + op.OpCode + utils.NumToString(op.Chars)
}

func (op *Op) Clear() {
	op.OpCode = ""
	op.Chars = 0
	op.Lines = 0
	op.Attribs = ""
}
