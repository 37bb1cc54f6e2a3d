package changeset

import (
	"regexp"

	"github.com/ether/easysync/lib/utils"
)

var opRegex = regexp.MustCompile(`^(?:((?:\*[0-9a-z]+)*)(?:\|([0-9a-z]+))?([-+=])([0-9a-z]+)|(?s:(.)))`)

// OpIterator walks an op stream. It stops at the end of the string or at the
// `$` that separates the ops of a changeset from its char bank.
type OpIterator struct {
	ops       string
	curIndex  int
	prevIndex int
	next      Op
	nextErr   error
	hasNext   bool
}

func NewOpIterator(ops string, startIndex int) *OpIterator {
	it := &OpIterator{
		ops:       ops,
		curIndex:  startIndex,
		prevIndex: startIndex,
	}
	it.advance()
	return it
}

func (it *OpIterator) advance() {
	it.prevIndex = it.curIndex
	it.next = Op{}
	it.hasNext = false
	if it.curIndex >= len(it.ops) {
		return
	}
	m := opRegex.FindStringSubmatchIndex(it.ops[it.curIndex:])
	if m == nil {
		return
	}
	start := it.curIndex
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return it.ops[start+m[2*i] : start+m[2*i+1]]
	}
	it.curIndex += m[1]

	if m[10] >= 0 {
		char := group(5)
		if char == "$" {
			return
		}
		it.hasNext = true
		it.nextErr = &ParseError{Ops: it.ops, Offset: start, Char: char}
		return
	}

	chars, err := utils.ParseNum(group(4))
	if err != nil {
		it.hasNext = true
		it.nextErr = &ParseError{Ops: it.ops, Offset: start, Char: group(4)}
		return
	}
	lines := 0
	if l := group(2); l != "" {
		lines, err = utils.ParseNum(l)
		if err != nil {
			it.hasNext = true
			it.nextErr = &ParseError{Ops: it.ops, Offset: start, Char: l}
			return
		}
	}
	it.hasNext = true
	it.next = Op{
		OpCode:  group(3),
		Chars:   chars,
		Lines:   lines,
		Attribs: group(1),
	}
}

func (it *OpIterator) HasNext() bool {
	return it.hasNext
}

// Next returns the next op. A malformed token yields a *ParseError and ends
// the iteration. Calling Next on an exhausted iterator returns an empty op.
func (it *OpIterator) Next() (Op, error) {
	if !it.hasNext {
		return Op{}, nil
	}
	if it.nextErr != nil {
		err := it.nextErr
		it.hasNext = false
		it.nextErr = nil
		return Op{}, err
	}
	op := it.next
	it.advance()
	return op, nil
}

// LastIndex returns the offset in the ops string right behind the op that was
// returned last.
func (it *OpIterator) LastIndex() int {
	return it.prevIndex
}

// DeserializeOps parses a complete op stream.
func DeserializeOps(ops string) ([]Op, error) {
	var result []Op
	it := NewOpIterator(ops, 0)
	for it.HasNext() {
		op, err := it.Next()
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	return result, nil
}
