package changeset

import (
	"github.com/ether/easysync/lib/apool"
)

// AttributeMap is a key to value view on an attribute string. Setting an
// entry interns the pair into the backing pool.
type AttributeMap struct {
	pool  *apool.APool
	attrs map[string]string
}

func NewAttributeMap(pool *apool.APool) *AttributeMap {
	return &AttributeMap{
		pool:  pool,
		attrs: make(map[string]string),
	}
}

func FromString(s string, pool *apool.APool) (*AttributeMap, error) {
	return NewAttributeMap(pool).UpdateFromString(s, false)
}

// Update applies the given pairs in order. With emptyValueIsDelete an empty
// value removes the key instead of storing it.
func (a *AttributeMap) Update(entries []apool.Attribute, emptyValueIsDelete bool) *AttributeMap {
	for _, entry := range entries {
		if entry.Value == "" && emptyValueIsDelete {
			a.Delete(entry.Key)
		} else {
			a.Set(entry.Key, entry.Value)
		}
	}
	return a
}

func (a *AttributeMap) UpdateFromString(s string, emptyValueIsDelete bool) (*AttributeMap, error) {
	attribs, err := AttribsFromString(s, a.pool)
	if err != nil {
		return nil, err
	}
	return a.Update(attribs, emptyValueIsDelete), nil
}

func (a *AttributeMap) Has(key string) bool {
	_, ok := a.attrs[key]
	return ok
}

func (a *AttributeMap) Size() int {
	return len(a.attrs)
}

func (a *AttributeMap) Set(key string, value string) *AttributeMap {
	a.attrs[key] = value
	if a.pool != nil {
		a.pool.PutAttrib(apool.Attribute{Key: key, Value: value}, false)
	}
	return a
}

// Get returns the value for key, or the empty string.
func (a *AttributeMap) Get(key string) string {
	return a.attrs[key]
}

func (a *AttributeMap) Delete(key string) {
	delete(a.attrs, key)
}

// Entries returns the pairs sorted by key.
func (a *AttributeMap) Entries() []apool.Attribute {
	entries := make([]apool.Attribute, 0, len(a.attrs))
	for key, value := range a.attrs {
		entries = append(entries, apool.Attribute{Key: key, Value: value})
	}
	return SortAttribs(entries)
}

func (a *AttributeMap) String() string {
	if len(a.attrs) == 0 || a.pool == nil {
		return ""
	}
	resolved, err := AttribsToString(a.Entries(), a.pool)
	if err != nil {
		return ""
	}
	return resolved
}
