package apool

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrAttribNotFound = errors.New("attrib not found")

// APool interns (key, value) attribute pairs into small integers. Numbers are
// handed out densely starting at 0 and are never reused. A pool belongs to one
// document; callers sharing a pool between goroutines must synchronise
// PutAttrib themselves.
type APool struct {
	NumToAttrib map[int]Attribute
	AttribToNum map[Attribute]int
	NextNum     int
}

// JsonablePool is the wire and storage form of a pool.
type JsonablePool struct {
	NumToAttrib map[int][]string `json:"numToAttrib"`
	NextNum     int              `json:"nextNum"`
}

func NewAPool() *APool {
	return &APool{
		NumToAttrib: make(map[int]Attribute),
		AttribToNum: make(map[Attribute]int),
		NextNum:     0,
	}
}

// PutAttrib returns the number of attrib, adding it to the pool first if it
// is unknown. With dontAddIfAbsent set an unknown attrib yields -1 and the
// pool is left untouched.
func (a *APool) PutAttrib(attrib Attribute, dontAddIfAbsent bool) int {
	if val, ok := a.AttribToNum[attrib]; ok {
		return val
	}

	if dontAddIfAbsent {
		return -1
	}

	var num = a.NextNum
	a.NextNum++
	a.AttribToNum[attrib] = num
	a.NumToAttrib[num] = attrib

	return num
}

func (a *APool) GetAttrib(num int) (*Attribute, error) {
	pair, ok := a.NumToAttrib[num]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAttribNotFound, num)
	}
	return &pair, nil
}

func (a *APool) GetAttribKey(num int) string {
	return a.NumToAttrib[num].Key
}

func (a *APool) GetAttribValue(num int) string {
	return a.NumToAttrib[num].Value
}

// EachAttrib calls f for every attribute in ascending number order.
func (a *APool) EachAttrib(f func(key, value string)) {
	nums := make([]int, 0, len(a.NumToAttrib))
	for num := range a.NumToAttrib {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		attrib := a.NumToAttrib[num]
		f(attrib.Key, attrib.Value)
	}
}

func (a *APool) Clone() *APool {
	var newPool = NewAPool()
	for num, attrib := range a.NumToAttrib {
		newPool.NumToAttrib[num] = attrib
		newPool.AttribToNum[attrib] = num
	}
	newPool.NextNum = a.NextNum
	return newPool
}

// Check verifies that both directions of the pool agree and that numbers are
// dense.
func (a *APool) Check() error {
	if a.NextNum < 0 {
		return errors.New("nextNum is negative")
	}
	if len(a.AttribToNum) != a.NextNum {
		return fmt.Errorf("attribToNum has %d entries, expected %d", len(a.AttribToNum), a.NextNum)
	}
	if len(a.NumToAttrib) != a.NextNum {
		return fmt.Errorf("numToAttrib has %d entries, expected %d", len(a.NumToAttrib), a.NextNum)
	}

	for i := 0; i < a.NextNum; i++ {
		attrib, ok := a.NumToAttrib[i]
		if !ok {
			return fmt.Errorf("attribute %d is missing", i)
		}
		if num, ok := a.AttribToNum[attrib]; !ok || num != i {
			return fmt.Errorf("reverse entry of attribute %d (%s) is inconsistent", i, attrib.String())
		}
	}
	return nil
}

func (a *APool) ToJsonable() JsonablePool {
	var jsonAbleMap = make(map[int][]string, len(a.NumToAttrib))
	for num, attrib := range a.NumToAttrib {
		jsonAbleMap[num] = attrib.ToJsonAble()
	}
	return JsonablePool{NumToAttrib: jsonAbleMap, NextNum: a.NextNum}
}

// FromJsonable replaces the contents of the pool with obj. The reverse map is
// rebuilt from numToAttrib.
func (a *APool) FromJsonable(obj JsonablePool) error {
	numToAttrib := make(map[int]Attribute, len(obj.NumToAttrib))
	attribToNum := make(map[Attribute]int, len(obj.NumToAttrib))
	for num, raw := range obj.NumToAttrib {
		entry, err := FromJsonAble(raw)
		if err != nil {
			return fmt.Errorf("attribute %d: %w", num, err)
		}
		numToAttrib[num] = entry
		attribToNum[entry] = num
	}
	a.NumToAttrib = numToAttrib
	a.AttribToNum = attribToNum
	a.NextNum = obj.NextNum
	return nil
}

func (a *APool) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToJsonable())
}

func (a *APool) UnmarshalJSON(data []byte) error {
	var obj JsonablePool
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	return a.FromJsonable(obj)
}
