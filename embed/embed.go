// Package embed implements sets of sparse embedding tables.
//
// Each table maps a hashed feature key to a dense row. Every table writes its rows into a
// fixed window (offset, length) of one concatenated embedding vector. Keys that have never
// received a gradient read the table's default row instead; only gradient accumulation
// creates rows.
package embed

import (
	"github.com/gorgonia/sparsenet/features"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// Row is a view of one embedding row, handed to the optimizer.
// The slices alias the table's storage and are only valid until the next insertion.
type Row struct {
	Table int
	Key   uint64
	W     []float32   // weights
	G     []float32   // accumulated gradient
	Slots [][]float32 // optimizer state
	Step  int         // batches that have touched the row, the pending one included
}

type touch struct {
	table, slot int
}

// Set is a set of embedding tables producing one concatenated vector.
//
// Set is not safe for concurrent writers.
type Set struct {
	tables  []*table
	lengths []int
	offsets []int
	width   int
	slots   int

	touched []touch
}

// New creates a set of len(lengths) tables. Table i writes lengths[i] values at offsets[i] of
// an embedding vector of the given width. A nil offsets packs the tables one after another.
// slots is the number of per-row optimizer state vectors.
func New(lengths, offsets []int, width, slots int) (*Set, error) {
	if offsets == nil {
		offsets = make([]int, len(lengths))
		var off int
		for i, l := range lengths {
			offsets[i] = off
			off += l
		}
	}
	if len(offsets) != len(lengths) {
		return nil, errors.Errorf("%d lengths but %d offsets", len(lengths), len(offsets))
	}
	if slots < 0 {
		return nil, errors.Errorf("invalid slot count %d", slots)
	}
	retVal := &Set{
		tables:  make([]*table, len(lengths)),
		lengths: make([]int, len(lengths)),
		offsets: make([]int, len(offsets)),
		width:   width,
		slots:   slots,
	}
	for i, l := range lengths {
		if l <= 0 {
			return nil, errors.Errorf("table %d has length %d", i, l)
		}
		if offsets[i] < 0 || offsets[i]+l > width {
			return nil, errors.Errorf("table %d spans [%d, %d) which does not fit in an embedding of width %d", i, offsets[i], offsets[i]+l, width)
		}
		retVal.tables[i] = newTable(l, slots)
	}
	copy(retVal.lengths, lengths)
	copy(retVal.offsets, offsets)
	return retVal, nil
}

// NrTable returns the number of tables.
func (s *Set) NrTable() int { return len(s.tables) }

// Width returns the width of the concatenated embedding vector.
func (s *Set) Width() int { return s.width }

// Length returns the row length of table i.
func (s *Set) Length(i int) int { return s.lengths[i] }

// Offset returns the output offset of table i.
func (s *Set) Offset(i int) int { return s.offsets[i] }

// Slots returns the number of optimizer state vectors kept per row.
func (s *Set) Slots() int { return s.slots }

// Len returns the number of rows in table i.
func (s *Set) Len(i int) int { return s.table(i).index.Len() }

// Rows returns the total number of rows across all tables.
func (s *Set) Rows() (retVal int) {
	for _, t := range s.tables {
		retVal += t.index.Len()
	}
	return
}

// NrTrainable returns the number of trainable scalars held in rows.
func (s *Set) NrTrainable() (retVal int) {
	for i, t := range s.tables {
		retVal += t.index.Len() * s.lengths[i]
	}
	return
}

// Default returns the default row of table i. The returned slice must not be modified.
func (s *Set) Default(i int) []float32 { return s.table(i).def }

// SetDefault sets the default row of table i. Rows already created are unaffected.
func (s *Set) SetDefault(i int, row []float32) {
	t := s.table(i)
	if len(row) != t.length {
		panic(errors.Errorf("default row for table %d has %d values, expected %d", i, len(row), t.length))
	}
	copy(t.def, row)
}

// Lookup returns the row stored for key in table i, or the default row if the key has no row.
// Lookup never creates a row. The returned slice must not be modified.
func (s *Set) Lookup(i int, key uint64) []float32 {
	t := s.table(i)
	if slot, ok := t.index.Get(key); ok {
		return t.weights(slot)
	}
	return t.def
}

// Has reports whether table i has a row for key.
func (s *Set) Has(i int, key uint64) bool {
	_, ok := s.table(i).index.Get(key)
	return ok
}

// Embed adds the weighted rows of every feature into out.
func (s *Set) Embed(feats []features.Feature, out []float32) {
	if len(out) < s.width {
		panic(errors.Errorf("embedding output has %d values, expected at least %d", len(out), s.width))
	}
	for _, f := range feats {
		i := int(f.I)
		row := s.Lookup(i, f.Key)
		off := s.offsets[i]
		vecf32.IncrScale(row, f.Value, out[off:off+len(row)])
	}
}

// Accumulate adds grad into the gradient of key's row in table i. If the key has no row yet,
// one is created from the table's default row first.
func (s *Set) Accumulate(i int, key uint64, grad []float32) {
	t := s.table(i)
	if len(grad) != t.length {
		panic(errors.Errorf("gradient for table %d has %d values, expected %d", i, len(grad), t.length))
	}
	slot, _ := t.insert(key)
	vecf32.Add(t.gradient(slot), grad)
	s.mark(i, slot)
}

// Backprop routes the gradient of the embedding vector back into the rows of every feature.
func (s *Set) Backprop(feats []features.Feature, dInput []float32) {
	if len(dInput) < s.width {
		panic(errors.Errorf("embedding gradient has %d values, expected at least %d", len(dInput), s.width))
	}
	for _, f := range feats {
		i := int(f.I)
		t := s.table(i)
		off := s.offsets[i]
		slot, _ := t.insert(f.Key)
		vecf32.IncrScale(dInput[off:off+t.length], f.Value, t.gradient(slot))
		s.mark(i, slot)
	}
}

// Touched calls fn on every row with a pending gradient, in the order the rows were first touched.
func (s *Set) Touched(fn func(r Row)) {
	for _, tc := range s.touched {
		t := s.tables[tc.table]
		key, _ := t.index.Key(tc.slot)
		fn(Row{
			Table: tc.table,
			Key:   key,
			W:     t.weights(tc.slot),
			G:     t.gradient(tc.slot),
			Slots: t.state(tc.slot),
			Step:  int(t.freq[tc.slot]),
		})
	}
}

// NrTouched returns the number of rows with a pending gradient.
func (s *Set) NrTouched() int { return len(s.touched) }

// ClearTouched forgets the pending rows. It does not zero their gradients.
func (s *Set) ClearTouched() {
	for _, tc := range s.touched {
		s.tables[tc.table].mark[tc.slot] = false
	}
	s.touched = s.touched[:0]
}

// Frequency returns how many batches have touched key's row in table i.
func (s *Set) Frequency(i int, key uint64) uint32 {
	t := s.table(i)
	if slot, ok := t.index.Get(key); ok {
		return t.freq[slot]
	}
	return 0
}

// Prune removes the rows of table i touched fewer than minFreq times. Rows with a pending
// gradient are kept. It returns the number of rows removed.
func (s *Set) Prune(i int, minFreq uint32) (removed int) {
	t := s.table(i)
	for _, key := range t.index.Keys() {
		slot, _ := t.index.Get(key)
		if t.mark[slot] || t.freq[slot] >= minFreq {
			continue
		}
		t.index.Delete(key)
		removed++
	}
	return
}

func (s *Set) mark(i, slot int) {
	t := s.tables[i]
	if t.mark[slot] {
		return
	}
	t.mark[slot] = true
	t.freq[slot]++
	s.touched = append(s.touched, touch{table: i, slot: slot})
}

func (s *Set) table(i int) *table {
	if i < 0 || i >= len(s.tables) {
		panic(errors.Errorf("table %d out of range. There are %d tables", i, len(s.tables)))
	}
	return s.tables[i]
}
