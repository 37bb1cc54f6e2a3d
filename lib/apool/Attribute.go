package apool

import "fmt"

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (a Attribute) String() string {
	return a.Key + "," + a.Value
}

// CmpAttribute orders attributes by key only.
func CmpAttribute(a, b Attribute) int {
	if a.Key < b.Key {
		return -1
	}
	if a.Key > b.Key {
		return 1
	}
	return 0
}

func (a *Attribute) ToJsonAble() []string {
	return []string{a.Key, a.Value}
}

func FromJsonAble(convertable []string) (Attribute, error) {
	if len(convertable) != 2 {
		return Attribute{}, fmt.Errorf("attribute must be a [key, value] pair, got %d elements", len(convertable))
	}
	return Attribute{
		Key:   convertable[0],
		Value: convertable[1],
	}, nil
}
