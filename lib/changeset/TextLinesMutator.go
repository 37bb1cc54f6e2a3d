package changeset

import (
	"strings"

	"github.com/ether/easysync/lib/utils"
)

// TextLinesMutator applies edits to a slice of lines in place. Edits are
// collected in a pending splice (replace spliceDelete lines at spliceStart by
// spliceLines) that is written back when the mutator leaves it or is closed.
//
// curLine and curCol are positions in the lines after the pending splice is
// applied. While in a splice curLine lies within the splice lines or right
// behind them, in which case curCol is 0.
type TextLinesMutator struct {
	lines        *[]string
	spliceStart  int
	spliceDelete int
	spliceLines  []string
	inSplice     bool
	curLine      int
	curCol       int
}

func NewTextLinesMutator(lines *[]string) *TextLinesMutator {
	return &TextLinesMutator{
		lines: lines,
	}
}

func (m *TextLinesMutator) linesGet(idx int) string {
	if idx < 0 || idx >= len(*m.lines) {
		return ""
	}
	return (*m.lines)[idx]
}

func (m *TextLinesMutator) linesSlice(start, end int) []string {
	start = max(0, min(start, len(*m.lines)))
	end = max(start, min(end, len(*m.lines)))
	return (*m.lines)[start:end]
}

func (m *TextLinesMutator) enterSplice() {
	m.spliceStart = m.curLine
	m.spliceDelete = 0
	if m.curCol > 0 {
		m.putCurLineInSplice()
	}
	m.inSplice = true
}

func (m *TextLinesMutator) leaveSplice() {
	*m.lines = utils.Splice(*m.lines, m.spliceStart, m.spliceDelete, m.spliceLines...)
	m.spliceStart = 0
	m.spliceDelete = 0
	m.spliceLines = nil
	m.inSplice = false
}

func (m *TextLinesMutator) isCurLineInSplice() bool {
	// curLine counts lines after the splice is applied, so spliceDelete does
	// not matter here
	return m.curLine-m.spliceStart < len(m.spliceLines)
}

// putCurLineInSplice pulls the current line into the splice and returns its
// index in spliceLines.
func (m *TextLinesMutator) putCurLineInSplice() int {
	if !m.isCurLineInSplice() {
		m.spliceLines = append(m.spliceLines, m.linesGet(m.spliceStart+m.spliceDelete))
		m.spliceDelete++
	}
	return m.curLine - m.spliceStart
}

func (m *TextLinesMutator) SkipLines(L int, includeInSplice bool) {
	if L == 0 {
		return
	}
	if includeInSplice {
		if !m.inSplice {
			m.enterSplice()
		}
		for i := 0; i < L; i++ {
			m.curCol = 0
			m.putCurLineInSplice()
			m.curLine++
		}
	} else {
		if m.inSplice {
			if L > 1 {
				m.leaveSplice()
			} else {
				m.putCurLineInSplice()
			}
		}
		m.curLine += L
		m.curCol = 0
	}
}

func (m *TextLinesMutator) Skip(N, L int, includeInSplice bool) {
	if N == 0 {
		return
	}
	if L > 0 {
		m.SkipLines(L, includeInSplice)
		return
	}
	if includeInSplice && !m.inSplice {
		m.enterSplice()
	}
	if m.inSplice {
		// only some chars of the line are skipped, curLine stays
		m.putCurLineInSplice()
	}
	m.curCol += N
}

// RemoveLines removes L whole lines and returns their text.
func (m *TextLinesMutator) RemoveLines(L int) string {
	if L == 0 {
		return ""
	}
	if !m.inSplice {
		m.enterSplice()
	}

	nextKLinesText := func(k int) string {
		next := m.spliceStart + m.spliceDelete
		return strings.Join(m.linesSlice(next, next+k), "")
	}

	var removed string
	if m.isCurLineInSplice() {
		last := len(m.spliceLines) - 1
		if m.curCol == 0 {
			removed = m.spliceLines[last]
			m.spliceLines = m.spliceLines[:last]
			removed += nextKLinesText(L - 1)
			m.spliceDelete += L - 1
		} else {
			removed = nextKLinesText(L - 1)
			m.spliceDelete += L - 1
			line := []rune(m.spliceLines[last])
			col := min(m.curCol, len(line))
			removed = string(line[col:]) + removed
			m.spliceLines[last] = string(line[:col]) + m.linesGet(m.spliceStart+m.spliceDelete)
			m.spliceDelete++
		}
	} else {
		removed = nextKLinesText(L)
		m.spliceDelete += L
	}
	return removed
}

// Remove removes N characters spanning L newlines and returns them.
func (m *TextLinesMutator) Remove(N, L int) string {
	if N == 0 {
		return ""
	}
	if L > 0 {
		return m.RemoveLines(L)
	}
	if !m.inSplice {
		m.enterSplice()
	}
	// only some chars of the line are removed, curLine stays
	sline := m.putCurLineInSplice()
	line := []rune(m.spliceLines[sline])
	from := min(m.curCol, len(line))
	to := min(m.curCol+N, len(line))
	removed := string(line[from:to])
	m.spliceLines[sline] = string(line[:from]) + string(line[to:])
	return removed
}

// Insert inserts text containing L newlines at the current position.
func (m *TextLinesMutator) Insert(text string, L int) {
	if text == "" {
		return
	}
	if !m.inSplice {
		m.enterSplice()
	}
	if L > 0 {
		newLines := SplitTextLines(text)
		if m.isCurLineInSplice() {
			sline := len(m.spliceLines) - 1
			theLine := []rune(m.spliceLines[sline])
			lineCol := min(m.curCol, len(theLine))
			// the chars up to curCol followed by the first new line
			m.spliceLines[sline] = string(theLine[:lineCol]) + newLines[0]
			m.curLine++
			newLines = newLines[1:]
			m.spliceLines = append(m.spliceLines, newLines...)
			m.curLine += len(newLines)
			// the rest of the line we were in
			m.spliceLines = append(m.spliceLines, string(theLine[lineCol:]))
			m.curCol = 0
		} else {
			m.spliceLines = append(m.spliceLines, newLines...)
			m.curLine += len(newLines)
		}
	} else {
		// no newline reached, so curLine stays
		sline := m.putCurLineInSplice()
		line := []rune(m.spliceLines[sline])
		col := min(m.curCol, len(line))
		m.spliceLines[sline] = string(line[:col]) + text + string(line[col:])
		m.curCol += utils.RuneCount(text)
	}
}

func (m *TextLinesMutator) HasMore() bool {
	docLines := len(*m.lines)
	if m.inSplice {
		docLines += len(m.spliceLines) - m.spliceDelete
	}
	return m.curLine < docLines
}

// Close writes a pending splice back to the lines.
func (m *TextLinesMutator) Close() {
	if m.inSplice {
		m.leaveSplice()
	}
}

func (m *TextLinesMutator) GetLines() []string {
	return *m.lines
}
