package changeset

import (
	"regexp"
	"strings"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/utils"
)

var attribNumRegex = regexp.MustCompile(`\*([0-9a-z]+)`)

// MapAttribNumbers rewrites every attribute reference in the ops part of a
// changeset or in an attribution string. fn returns the new number, or false
// to drop the reference.
func MapAttribNumbers(cs string, fn func(num int) (int, bool)) string {
	dollarPos := strings.IndexByte(cs, '$')
	if dollarPos < 0 {
		dollarPos = len(cs)
	}
	upToDollar := cs[:dollarPos]

	newUpToDollar := attribNumRegex.ReplaceAllStringFunc(upToDollar, func(s string) string {
		num, err := utils.ParseNum(s[1:])
		if err != nil {
			return ""
		}
		n, ok := fn(num)
		if !ok {
			return ""
		}
		return "*" + utils.NumToString(n)
	})

	return newUpToDollar + cs[dollarPos:]
}

// FilterAttribNumbers keeps the attribute references for which filter returns
// true. Adjacent ops are not merged afterwards.
func FilterAttribNumbers(cs string, filter func(num int) bool) string {
	return MapAttribNumbers(cs, func(num int) (int, bool) {
		return num, filter(num)
	})
}

// MoveOpsToNewPool renumbers the attributes of a changeset or attribution
// string from oldPool to newPool. References missing from oldPool are
// dropped.
func MoveOpsToNewPool(cs string, oldPool, newPool *apool.APool) string {
	return MapAttribNumbers(cs, func(num int) (int, bool) {
		pair, err := oldPool.GetAttrib(num)
		if err != nil {
			return 0, false
		}
		return newPool.PutAttrib(*pair, false), true
	})
}

// WirePrep is a changeset together with the minimal pool it references.
type WirePrep struct {
	Translated string
	Pool       *apool.APool
}

func PrepareForWire(cs string, pool *apool.APool) WirePrep {
	newPool := apool.NewAPool()
	return WirePrep{
		Translated: MoveOpsToNewPool(cs, pool, newPool),
		Pool:       newPool,
	}
}

// AttribsAttributeValue returns the value stored for key in an attribute
// string, or the empty string.
func AttribsAttributeValue(attribs, key string, pool *apool.APool) string {
	if attribs == "" {
		return ""
	}
	pairs, err := AttribsFromString(attribs, pool)
	if err != nil {
		return ""
	}
	for _, pair := range pairs {
		if pair.Key == key {
			return pair.Value
		}
	}
	return ""
}

func OpAttributeValue(op Op, key string, pool *apool.APool) string {
	return AttribsAttributeValue(op.Attribs, key, pool)
}

// MakeAttribsString encodes attributes for an op with the given opcode. Only
// keeps and insertions carry attributes.
func MakeAttribsString(opcode string, attribs AttribArgs, pool *apool.APool) (string, error) {
	if opcode != "=" && opcode != "+" {
		return "", nil
	}
	return attribs.attribString(opcode, pool)
}
