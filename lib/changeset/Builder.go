package changeset

import "github.com/ether/easysync/lib/apool"

// AttribArgs carries the attributes of a builder or assembler call. Either an
// already encoded attribute string is passed, which needs no pool, or a list
// of key/value pairs that are interned into the pool given alongside.
type AttribArgs struct {
	encoded *string
	pairs   []apool.Attribute
}

func EncodedAttribs(s string) AttribArgs {
	return AttribArgs{encoded: &s}
}

func AttribPairs(pairs ...apool.Attribute) AttribArgs {
	return AttribArgs{pairs: pairs}
}

// attribString resolves the arguments to an attribute string. For insertions
// an empty value drops the key altogether.
func (a AttribArgs) attribString(opcode string, pool *apool.APool) (string, error) {
	if a.encoded != nil {
		return *a.encoded, nil
	}
	if len(a.pairs) == 0 {
		return "", nil
	}
	if pool == nil {
		return "", ErrMissingPool
	}
	return NewAttributeMap(pool).Update(a.pairs, opcode == "+").String(), nil
}

// Builder assembles a changeset against a document of known length.
type Builder struct {
	oldLen   int
	assem    *SmartOpAssembler
	charBank *StringAssembler
	err      error
}

func NewBuilder(oldLen int) *Builder {
	return &Builder{
		oldLen:   oldLen,
		assem:    NewSmartOpAssembler(),
		charBank: NewStringAssembler(),
	}
}

// Keep retains N characters spanning L newlines. If L is positive the last
// kept character must be a newline.
func (b *Builder) Keep(N int, L int, attribs AttribArgs, pool *apool.APool) *Builder {
	if b.err != nil {
		return b
	}
	o := NewOp("=")
	o.Attribs, b.err = attribs.attribString("=", pool)
	o.Chars = N
	o.Lines = max(L, 0)
	b.assem.Append(o)
	return b
}

func (b *Builder) KeepText(text string, attribs AttribArgs, pool *apool.APool) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.assem.AppendOpWithText("=", text, attribs, pool)
	return b
}

func (b *Builder) Insert(text string, attribs AttribArgs, pool *apool.APool) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.assem.AppendOpWithText("+", text, attribs, pool)
	b.charBank.Append(text)
	return b
}

func (b *Builder) Remove(N int, L int) *Builder {
	if b.err != nil {
		return b
	}
	o := NewOp("-")
	o.Chars = N
	o.Lines = max(L, 0)
	b.assem.Append(o)
	return b
}

// ToString packs the changeset. It reports the first error hit by any of the
// chained calls.
func (b *Builder) ToString() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.assem.EndDocument()
	newLen := b.oldLen + b.assem.LengthChange()
	return Pack(b.oldLen, newLen, b.assem.String(), b.charBank.String()), nil
}
