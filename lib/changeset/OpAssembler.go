package changeset

import "strings"

// OpAssembler serializes ops without merging them.
type OpAssembler struct {
	serialized strings.Builder
}

func NewOpAssembler() *OpAssembler {
	return &OpAssembler{}
}

func (oa *OpAssembler) Append(op Op) {
	oa.serialized.WriteString(op.String())
}

func (oa *OpAssembler) String() string {
	return oa.serialized.String()
}

func (oa *OpAssembler) Clear() {
	oa.serialized.Reset()
}
