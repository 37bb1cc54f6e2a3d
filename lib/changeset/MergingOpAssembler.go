package changeset

// MergingOpAssembler joins adjacent ops that share an opcode and attributes.
// A merged multi-line op must end in a newline, so chars appended after the
// last newline are held in tail and written as a second, single-line op.
type MergingOpAssembler struct {
	assem *OpAssembler
	buf   Op
	tail  int
}

func NewMergingOpAssembler() *MergingOpAssembler {
	return &MergingOpAssembler{assem: NewOpAssembler()}
}

func (m *MergingOpAssembler) Append(op Op) {
	if op.Chars <= 0 {
		return
	}
	if m.buf.OpCode != op.OpCode || m.buf.Attribs != op.Attribs {
		m.flush(false)
		m.buf = op
		return
	}
	switch {
	case op.Lines > 0:
		m.buf.Chars += m.tail + op.Chars
		m.buf.Lines += op.Lines
		m.tail = 0
	case m.buf.Lines == 0:
		m.buf.Chars += op.Chars
	default:
		m.tail += op.Chars
	}
}

func (m *MergingOpAssembler) flush(endDocument bool) {
	if m.buf.OpCode == "" {
		return
	}
	// a plain keep at the very end is implied
	if !endDocument || m.buf.OpCode != "=" || m.buf.Attribs != "" {
		m.assem.Append(m.buf)
		if m.tail > 0 {
			m.assem.Append(Op{OpCode: m.buf.OpCode, Chars: m.tail, Attribs: m.buf.Attribs})
		}
	}
	m.tail = 0
	m.buf.OpCode = ""
}

// EndDocument drops a trailing attribute-less keep.
func (m *MergingOpAssembler) EndDocument() {
	m.flush(true)
}

func (m *MergingOpAssembler) String() string {
	m.flush(false)
	return m.assem.String()
}

func (m *MergingOpAssembler) Clear() {
	m.assem.Clear()
	m.buf.Clear()
	m.tail = 0
}
