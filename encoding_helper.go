package sparsenet

import "github.com/pkg/errors"

// OneHotCosts encodes a single gold class as cost 0 and every other class as cost 1.
func OneHotCosts(gold, nrClass int, prealloc []float32) []float32 {
	if gold < 0 || gold >= nrClass {
		panic(errors.Errorf("gold class %d out of range. There are %d classes", gold, nrClass))
	}
	if len(prealloc) != nrClass {
		prealloc = make([]float32, nrClass)
	}
	for i := range prealloc {
		prealloc[i] = 1
	}
	prealloc[gold] = 0
	return prealloc
}

// ValidMask marks the listed classes valid and every other class invalid.
func ValidMask(valid []int, nrClass int, prealloc []bool) []bool {
	if len(prealloc) != nrClass {
		prealloc = make([]bool, nrClass)
	}
	for i := range prealloc {
		prealloc[i] = false
	}
	for _, c := range valid {
		if c < 0 || c >= nrClass {
			panic(errors.Errorf("class %d out of range. There are %d classes", c, nrClass))
		}
		prealloc[c] = true
	}
	return prealloc
}
