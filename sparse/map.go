// Package sparse provides the sparse containers the rest of the engine is built on:
// a key to slot map for dense row storage, sorted sparse vectors, and an averaged
// weight history.
package sparse

import "sort"

// Map associates sparse 64 bit feature keys with slots in a dense buffer owned by the caller.
//
// Slots are handed out densely. A deleted key's slot goes onto a freelist and is reused by
// the next insertion, so Cap() only grows when the freelist is empty.
type Map struct {
	index map[uint64]int
	keys  []uint64 // slot -> key
	live  []bool   // slot -> in use

	freelist []int
}

// NewMap creates a new Map with room for hint keys.
func NewMap(hint int) *Map {
	return &Map{
		index: make(map[uint64]int, hint),
		keys:  make([]uint64, 0, hint),
		live:  make([]bool, 0, hint),
	}
}

// Get returns the slot of the key.
func (m *Map) Get(key uint64) (slot int, ok bool) {
	slot, ok = m.index[key]
	return
}

// Insert returns the slot of the key, allocating one if the key has never been seen.
// inserted is true when a new slot was allocated.
func (m *Map) Insert(key uint64) (slot int, inserted bool) {
	if slot, ok := m.index[key]; ok {
		return slot, false
	}
	slot = m.alloc()
	m.keys[slot] = key
	m.live[slot] = true
	m.index[key] = slot
	return slot, true
}

// Delete removes the key and releases its slot.
func (m *Map) Delete(key uint64) (slot int, ok bool) {
	if slot, ok = m.index[key]; !ok {
		return -1, false
	}
	delete(m.index, key)
	m.free(slot)
	return slot, true
}

// Len returns the number of keys in the map.
func (m *Map) Len() int { return len(m.index) }

// Cap returns the number of slots ever allocated. The caller's dense storage must hold at least this many rows.
func (m *Map) Cap() int { return len(m.keys) }

// Key returns the key stored at the slot.
func (m *Map) Key(slot int) (key uint64, ok bool) {
	if slot < 0 || slot >= len(m.keys) || !m.live[slot] {
		return 0, false
	}
	return m.keys[slot], true
}

// Keys returns the keys in ascending order.
func (m *Map) Keys() []uint64 {
	retVal := make([]uint64, 0, len(m.index))
	for k := range m.index {
		retVal = append(retVal, k)
	}
	sort.Slice(retVal, func(i, j int) bool { return retVal[i] < retVal[j] })
	return retVal
}

// alloc tries to get a slot from the free list. If none is found a new slot is appended.
func (m *Map) alloc() int {
	if l := len(m.freelist); l > 0 {
		slot := m.freelist[l-1]
		m.freelist = m.freelist[:l-1]
		return slot
	}
	m.keys = append(m.keys, 0)
	m.live = append(m.live, false)
	return len(m.keys) - 1
}

func (m *Map) free(slot int) {
	m.keys[slot] = 0
	m.live[slot] = false
	m.freelist = append(m.freelist, slot)
}
