package changeset

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/test/testutils/general"
	"github.com/ether/easysync/lib/utils"
)

var multilinePieces = regexp.MustCompile(`\n|[^\n]+`)

// createPool builds a pool from "key,value" strings.
func createPool(attribs []string) *apool.APool {
	var foundPool = apool.NewAPool()
	for _, attrib := range attribs {
		key, value, _ := strings.Cut(attrib, ",")
		foundPool.PutAttrib(apool.Attribute{
			Key:   key,
			Value: value,
		}, false)
	}
	return foundPool
}

// twoPropPool is the pool randomTwoPropAttribs refers to.
func twoPropPool() *apool.APool {
	return createPool([]string{"apple,", "apple,true", "banana,", "banana,true"})
}

// randomTestChangeset builds a random valid changeset against origText, which
// must end in a newline, and returns it with the resulting text.
func randomTestChangeset(t *testing.T, origText string, withAttribs bool) (string, string) {
	t.Helper()
	var charBank = NewStringAssembler()
	textLeft := []rune(origText)
	var outTextAssem = NewStringAssembler()
	opAssem := NewSmartOpAssembler()
	oldLen := len(textLeft)

	var nextOp Op

	appendMultilineOp := func(opcode string, txt string) {
		nextOp.OpCode = opcode
		if withAttribs {
			nextOp.Attribs = randomTwoPropAttribs(opcode)
		}

		for _, piece := range multilinePieces.FindAllString(txt, -1) {
			if piece == "\n" {
				nextOp.Chars = 1
				nextOp.Lines = 1
			} else {
				nextOp.Chars = utils.RuneCount(piece)
				nextOp.Lines = 0
			}
			opAssem.Append(nextOp)
		}
	}

	doOp := func() {
		o := randomStringOperation(len(textLeft))
		if o.insert != "" {
			txt := o.insert
			charBank.Append(txt)
			outTextAssem.Append(txt)
			appendMultilineOp("+", txt)
		} else if o.skip > 0 {
			txt := string(textLeft[:o.skip])
			textLeft = textLeft[o.skip:]
			outTextAssem.Append(txt)
			appendMultilineOp("=", txt)
		} else if o.remove > 0 {
			txt := string(textLeft[:o.remove])
			textLeft = textLeft[o.remove:]
			appendMultilineOp("-", txt)
		}
	}

	for len(textLeft) > 1 {
		doOp()
	}
	// only insertions can happen from here on
	for i := 0; i < 5; i++ {
		doOp()
	}

	outText := outTextAssem.String() + "\n"
	opAssem.EndDocument()
	cs := Pack(oldLen, utils.RuneCount(outText), opAssem.String(), charBank.String())
	if err := CheckRep(cs); err != nil {
		t.Fatalf("generated invalid changeset %q for %q: %v", cs, origText, err)
	}
	return cs, outText
}

type stringOperation struct {
	insert string
	skip   int
	remove int
}

func randomStringOperation(numCharsLeft int) stringOperation {
	var result stringOperation

	switch rand.Intn(11) {
	case 0:
		result.insert = general.RandomInlineString(1)
	case 1:
		result.remove = 1
	case 2:
		result.skip = 1
	case 3:
		result.insert = general.RandomInlineString(rand.Intn(4) + 1)
	case 4:
		result.remove = rand.Intn(4) + 1
	case 5:
		result.skip = rand.Intn(4) + 1
	case 6:
		result.insert = general.RandomMultiline(5, 20)
	case 7:
		result.remove = int(float64(numCharsLeft) * rand.Float64() * rand.Float64())
	case 8:
		result.skip = int(float64(numCharsLeft) * rand.Float64() * rand.Float64())
	case 9:
		result.remove = numCharsLeft
	case 10:
		result.skip = numCharsLeft
	}

	// the final newline always stays
	maxOrig := numCharsLeft - 1
	if result.remove > 0 {
		result.remove = min(result.remove, maxOrig)
	} else if result.skip > 0 {
		result.skip = min(result.skip, maxOrig)
	}

	return result
}

// randomTwoPropAttribs returns attributes for twoPropPool. Removals never
// carry attributes and insertions never carry empty values.
func randomTwoPropAttribs(opcode string) string {
	if opcode == "-" || rand.Intn(3) != 0 {
		return ""
	}
	if rand.Intn(3) != 0 {
		if opcode == "+" || rand.Intn(2) != 0 {
			return "*" + utils.NumToString(rand.Intn(2)*2+1)
		}
		return "*" + utils.NumToString(rand.Intn(2)*2)
	}
	if opcode == "+" || rand.Intn(4) == 0 {
		return "*1*3"
	}
	return []string{"*0*2", "*0*3", "*1*2"}[rand.Intn(3)]
}

// stringToOps turns every character into an insert op. The characters a and
// b carry the attributes *a and *b.
func stringToOps(str string) string {
	var assem = NewMergingOpAssembler()
	var o = NewOp("+")
	o.Chars = 1

	for _, char := range str {
		if char == '\n' {
			o.Lines = 1
		} else {
			o.Lines = 0
		}

		if char == 'a' || char == 'b' {
			o.Attribs = "*" + string(char)
		} else {
			o.Attribs = ""
		}
		assem.Append(o)
	}

	return assem.String()
}
