package changeset

import (
	"errors"
	"slices"
	"strings"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/utils"
)

func StringToAttrib(attrib []string) (*apool.Attribute, error) {
	if len(attrib) != 2 {
		return nil, errors.New("invalid attribute")
	}

	return &apool.Attribute{Key: attrib[0], Value: attrib[1]}, nil
}

// DecodeAttribString turns `*0*1*a` into the attribute numbers it lists.
func DecodeAttribString(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var attribs []int
	i := 0
	for i < len(s) {
		if s[i] != '*' {
			return nil, malformed("invalid character in attribute string %q at offset %d", s, i)
		}
		j := i + 1
		for j < len(s) && isBase36Digit(s[j]) {
			j++
		}
		if j == i+1 {
			return nil, malformed("invalid character in attribute string %q at offset %d", s, i)
		}
		num, err := utils.ParseNum(s[i+1 : j])
		if err != nil {
			return nil, malformed("attribute number %q: %v", s[i+1:j], err)
		}
		attribs = append(attribs, num)
		i = j
	}

	return attribs, nil
}

func isBase36Digit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')
}

func EncodeAttribString(attribNums []int) (string, error) {
	var str strings.Builder
	for _, num := range attribNums {
		if num < 0 {
			return "", errors.New("attrib number is negative")
		}
		str.WriteString("*")
		str.WriteString(utils.NumToString(num))
	}
	return str.String(), nil
}

func AttribsFromNums(attribNums []int, pool *apool.APool) ([]apool.Attribute, error) {
	if pool == nil && len(attribNums) > 0 {
		return nil, ErrMissingPool
	}
	attribs := make([]apool.Attribute, 0, len(attribNums))
	for _, num := range attribNums {
		if num < 0 {
			return nil, errors.New("attrib number is negative")
		}
		attrib, err := pool.GetAttrib(num)
		if err != nil {
			return nil, err
		}

		attribs = append(attribs, *attrib)
	}
	return attribs, nil
}

// AttribsToNums interns every attribute into the pool.
func AttribsToNums(attribs []apool.Attribute, pool *apool.APool) []int {
	nums := make([]int, 0, len(attribs))
	for _, attrib := range attribs {
		nums = append(nums, pool.PutAttrib(attrib, false))
	}
	return nums
}

func AttribsFromString(str string, pool *apool.APool) ([]apool.Attribute, error) {
	attribNums, err := DecodeAttribString(str)
	if err != nil {
		return nil, err
	}
	return AttribsFromNums(attribNums, pool)
}

func AttribsToString(attribs []apool.Attribute, pool *apool.APool) (string, error) {
	return EncodeAttribString(AttribsToNums(attribs, pool))
}

// SortAttribs orders attributes by key, which is the canonical order inside
// an attribute string.
func SortAttribs(attribs []apool.Attribute) []apool.Attribute {
	sorted := slices.Clone(attribs)
	slices.SortStableFunc(sorted, apool.CmpAttribute)
	return sorted
}
