package changeset

import "github.com/ether/easysync/lib/apool"

// SmartOpAssembler produces canonical op streams: within every run of
// non-keep ops all removals come before all insertions, and adjacent
// compatible ops are merged.
type SmartOpAssembler struct {
	minusAssem   *MergingOpAssembler
	plusAssem    *MergingOpAssembler
	keepAssem    *MergingOpAssembler
	assem        *StringAssembler
	lastOpcode   string
	lengthChange int
}

func NewSmartOpAssembler() *SmartOpAssembler {
	return &SmartOpAssembler{
		minusAssem: NewMergingOpAssembler(),
		plusAssem:  NewMergingOpAssembler(),
		keepAssem:  NewMergingOpAssembler(),
		assem:      NewStringAssembler(),
	}
}

func (sm *SmartOpAssembler) flushKeeps() {
	sm.assem.Append(sm.keepAssem.String())
	sm.keepAssem.Clear()
}

func (sm *SmartOpAssembler) flushPlusMinus() {
	sm.assem.Append(sm.minusAssem.String())
	sm.minusAssem.Clear()
	sm.assem.Append(sm.plusAssem.String())
	sm.plusAssem.Clear()
}

func (sm *SmartOpAssembler) Append(op Op) {
	if op.OpCode == "" || op.Chars == 0 {
		return
	}

	switch op.OpCode {
	case "-":
		if sm.lastOpcode == "=" {
			sm.flushKeeps()
		}
		sm.minusAssem.Append(op)
		sm.lengthChange -= op.Chars
	case "+":
		if sm.lastOpcode == "=" {
			sm.flushKeeps()
		}
		sm.plusAssem.Append(op)
		sm.lengthChange += op.Chars
	case "=":
		if sm.lastOpcode != "=" {
			sm.flushPlusMinus()
		}
		sm.keepAssem.Append(op)
	}

	sm.lastOpcode = op.OpCode
}

// AppendOpWithText appends the ops needed to cover text, splitting at the
// last newline.
func (sm *SmartOpAssembler) AppendOpWithText(opcode, text string, attribs AttribArgs, pool *apool.APool) error {
	ops, err := OpsFromText(opcode, text, attribs, pool)
	if err != nil {
		return err
	}
	for _, op := range ops {
		sm.Append(op)
	}
	return nil
}

func (sm *SmartOpAssembler) String() string {
	sm.flushPlusMinus()
	sm.flushKeeps()
	return sm.assem.String()
}

func (sm *SmartOpAssembler) Clear() {
	sm.minusAssem.Clear()
	sm.plusAssem.Clear()
	sm.keepAssem.Clear()
	sm.assem.Clear()
	sm.lastOpcode = ""
	sm.lengthChange = 0
}

func (sm *SmartOpAssembler) EndDocument() {
	sm.keepAssem.EndDocument()
}

func (sm *SmartOpAssembler) LengthChange() int {
	return sm.lengthChange
}
