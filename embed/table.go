package embed

import "github.com/gorgonia/sparsenet/sparse"

// table is a single embedding table. Rows live in one slab, addressed by the slot the sparse
// map hands out for each key. Each row occupies a stride of (2+slots)*length floats laid out
// as [weights | gradient | optimizer slot 0 | optimizer slot 1 | ...].
type table struct {
	length int
	slots  int
	stride int

	index *sparse.Map
	data  []float32
	freq  []uint32 // slot -> number of gradient updates
	mark  []bool   // slot -> has a pending gradient

	def []float32 // default row
}

func newTable(length, slots int) *table {
	return &table{
		length: length,
		slots:  slots,
		stride: (2 + slots) * length,
		index:  sparse.NewMap(64),
		def:    make([]float32, length),
	}
}

func (t *table) row(slot int) []float32 {
	start := slot * t.stride
	return t.data[start : start+t.stride]
}

func (t *table) weights(slot int) []float32 { return t.row(slot)[:t.length] }

func (t *table) gradient(slot int) []float32 {
	return t.row(slot)[t.length : 2*t.length]
}

func (t *table) state(slot int) [][]float32 {
	r := t.row(slot)
	retVal := make([][]float32, t.slots)
	for i := range retVal {
		start := (2 + i) * t.length
		retVal[i] = r[start : start+t.length]
	}
	return retVal
}

// insert returns the slot of key, creating a row initialized from the default row if needed.
func (t *table) insert(key uint64) (slot int, inserted bool) {
	if slot, inserted = t.index.Insert(key); !inserted {
		return
	}
	if need := t.index.Cap() * t.stride; need > len(t.data) {
		t.data = append(t.data, make([]float32, need-len(t.data))...)
		t.freq = append(t.freq, make([]uint32, t.index.Cap()-len(t.freq))...)
		t.mark = append(t.mark, make([]bool, t.index.Cap()-len(t.mark))...)
	}
	r := t.row(slot)
	for i := range r {
		r[i] = 0
	}
	copy(r[:t.length], t.def)
	t.freq[slot] = 0
	t.mark[slot] = false
	return slot, true
}
