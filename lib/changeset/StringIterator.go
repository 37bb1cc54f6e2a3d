package changeset

import "unicode/utf8"

// StringIterator hands out consecutive pieces of a string. Positions count
// code points.
type StringIterator struct {
	curIndex int
	str      []rune
}

func NewStringIterator(str string) *StringIterator {
	return &StringIterator{str: []rune(str)}
}

func (si *StringIterator) Remaining() int {
	return len(si.str) - si.curIndex
}

func (si *StringIterator) AssertRemaining(n int) error {
	if n < 0 || n > si.Remaining() {
		return malformed("not enough characters remaining: wanted %d, have %d", n, si.Remaining())
	}
	return nil
}

func (si *StringIterator) Take(n int) (string, error) {
	if err := si.AssertRemaining(n); err != nil {
		return "", err
	}
	s := string(si.str[si.curIndex : si.curIndex+n])
	si.curIndex += n
	return s, nil
}

func (si *StringIterator) Peek(n int) (string, error) {
	if err := si.AssertRemaining(n); err != nil {
		return "", err
	}
	return string(si.str[si.curIndex : si.curIndex+n]), nil
}

func (si *StringIterator) Skip(n int) error {
	if err := si.AssertRemaining(n); err != nil {
		return err
	}
	si.curIndex += n
	return nil
}

// StringAssembler accumulates output text.
type StringAssembler struct {
	str []byte
}

func NewStringAssembler() *StringAssembler {
	return &StringAssembler{}
}

func (sa *StringAssembler) Append(s string) {
	sa.str = append(sa.str, s...)
}

func (sa *StringAssembler) String() string {
	return string(sa.str)
}

func (sa *StringAssembler) Len() int {
	return utf8.RuneCount(sa.str)
}

func (sa *StringAssembler) Clear() {
	sa.str = sa.str[:0]
}
