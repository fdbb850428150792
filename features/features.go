// Package features turns raw feature atoms into hashed, weighted features.
//
// Atoms are produced by an external extraction pipeline. A Template picks a fixed list of
// atoms out of a context and combines them into a single 64 bit key; an Extractor applies a
// list of templates and emits one Feature per template, addressed at an embedding table.
package features

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

// MaxTemplateLen is the maximum number of atoms a Template may combine.
const MaxTemplateLen = 6

// Feature is a hashed feature pointing at an embedding table.
type Feature struct {
	I     int32   // embedding table / output slot
	Key   uint64  // hashed key
	Value float32 // usually 1 for presence features
}

func (f Feature) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "{I: %d Key: %#x Value: %v}", f.I, f.Key, f.Value)
}

// Template is a fixed recipe combining several atoms into one feature key.
// A Template is a value type and is never modified in place.
type Template struct {
	id      uint32
	n       int
	indices [MaxTemplateLen]int32
	atoms   [MaxTemplateLen]uint64
}

// NewTemplate creates a template reading the atoms at the given indices. The id seeds the
// hash so that two templates reading the same atoms produce different keys.
//
// It panics if more than MaxTemplateLen indices are given.
func NewTemplate(id uint32, indices ...int) Template {
	if len(indices) > MaxTemplateLen {
		panic(errors.Errorf("template %d has %d atoms. At most %d are allowed", id, len(indices), MaxTemplateLen))
	}
	retVal := Template{id: id, n: len(indices)}
	for i, idx := range indices {
		if idx < 0 {
			panic(errors.Errorf("template %d has a negative atom index %d", id, idx))
		}
		if int64(idx) > math.MaxInt32 {
			panic(errors.Errorf("template %d has an atom index %d beyond %d", id, idx, math.MaxInt32))
		}
		retVal.indices[i] = int32(idx)
	}
	return retVal
}

// ID returns the template's id.
func (t Template) ID() uint32 { return t.id }

// Len returns the number of atoms the template combines.
func (t Template) Len() int { return t.n }

// Indices returns the atom indices the template reads.
func (t Template) Indices() []int32 {
	retVal := make([]int32, t.n)
	copy(retVal, t.indices[:t.n])
	return retVal
}

// Atoms returns the resolved atom values.
func (t Template) Atoms() []uint64 {
	retVal := make([]uint64, t.n)
	copy(retVal, t.atoms[:t.n])
	return retVal
}

// Resolve returns a copy of the template with its atom values read out of the context.
//
// It panics if the context is too short for the template.
func (t Template) Resolve(context []uint64) Template {
	for i := 0; i < t.n; i++ {
		idx := int(t.indices[i])
		if idx >= len(context) {
			panic(errors.Errorf("template %d reads atom %d but the context only has %d atoms", t.id, idx, len(context)))
		}
		t.atoms[i] = context[idx]
	}
	return t
}

// IsZero reports whether all the resolved atoms are zero. Such a template carries no information.
func (t Template) IsZero() bool {
	for i := 0; i < t.n; i++ {
		if t.atoms[i] != 0 {
			return false
		}
	}
	return true
}

// Key hashes the resolved atoms into a single feature key.
func (t Template) Key() uint64 {
	var buf [MaxTemplateLen * 8]byte
	for i := 0; i < t.n; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], t.atoms[i])
	}
	return murmur3.Sum64WithSeed(buf[:t.n*8], t.id)
}
