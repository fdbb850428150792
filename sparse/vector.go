package sparse

import (
	"fmt"
	"sort"
)

// Entry is a single element of a sparse vector.
type Entry struct {
	Key   int32
	Value float32
}

func (e Entry) Format(s fmt.State, c rune) { fmt.Fprintf(s, "%d:%v", e.Key, e.Value) }

// Vector is a sparse vector, kept sorted by key.
type Vector []Entry

// search returns the position of the key, or where it would be inserted.
func (v Vector) search(key int32) (int, bool) {
	i := sort.Search(len(v), func(i int) bool { return v[i].Key >= key })
	return i, i < len(v) && v[i].Key == key
}

// Get returns the value stored at key. Missing keys are zero.
func (v Vector) Get(key int32) float32 {
	if i, ok := v.search(key); ok {
		return v[i].Value
	}
	return 0
}

// Has reports whether the key has an entry.
func (v Vector) Has(key int32) bool {
	_, ok := v.search(key)
	return ok
}

// Set stores the value at key, inserting an entry if needed.
func (v *Vector) Set(key int32, value float32) {
	i, ok := v.search(key)
	if ok {
		(*v)[i].Value = value
		return
	}
	*v = append(*v, Entry{})
	copy((*v)[i+1:], (*v)[i:])
	(*v)[i] = Entry{Key: key, Value: value}
}

// Add increments the value at key.
func (v *Vector) Add(key int32, value float32) {
	i, ok := v.search(key)
	if ok {
		(*v)[i].Value += value
		return
	}
	v.Set(key, value)
}

// Len returns the number of stored entries.
func (v Vector) Len() int { return len(v) }

// Entries returns a copy of the entries.
func (v Vector) Entries() []Entry {
	retVal := make([]Entry, len(v))
	copy(retVal, v)
	return retVal
}
