package helpers

import (
	"slices"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// HashCons is an append-only store of uint32 word sequences where every
// distinct sequence is stored exactly once and identified by its insertion
// index. Items are never removed or mutated.
type HashCons struct {
	data   []uint32
	starts []uint32
	// content hash -> ids with that hash (collisions are rare)
	table map[uint64][]uint32
}

func NewHashCons() *HashCons {
	return &HashCons{
		starts: []uint32{0},
		table:  make(map[uint64][]uint32),
	}
}

func hashWords(item []uint32) uint64 {
	if len(item) == 0 {
		return xxhash.Sum64(nil)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&item[0])), len(item)*4)
	return xxhash.Sum64(b)
}

// Insert returns the id of item, adding it when it was not seen before.
// The second result reports whether the item is new.
func (h *HashCons) Insert(item []uint32) (uint32, bool) {
	key := hashWords(item)
	for _, id := range h.table[key] {
		if slices.Equal(h.Get(id), item) {
			return id, false
		}
	}
	id := uint32(len(h.starts) - 1)
	h.data = append(h.data, item...)
	h.starts = append(h.starts, uint32(len(h.data)))
	h.table[key] = append(h.table[key], id)
	return id, true
}

// Lookup returns the id of item without inserting it.
func (h *HashCons) Lookup(item []uint32) (uint32, bool) {
	for _, id := range h.table[hashWords(item)] {
		if slices.Equal(h.Get(id), item) {
			return id, true
		}
	}
	return 0, false
}

// Get returns the words of an item. The result must not be modified.
// An id that was never returned by Insert panics.
func (h *HashCons) Get(id uint32) []uint32 {
	if int(id) >= len(h.starts)-1 {
		panic("helpers: HashCons id out of range")
	}
	return h.data[h.starts[id]:h.starts[id+1]:h.starts[id+1]]
}

// Len is the number of distinct items.
func (h *HashCons) Len() int {
	return len(h.starts) - 1
}

// NumBytes approximates the memory held by the store.
func (h *HashCons) NumBytes() int {
	return 4*len(h.data) + 4*len(h.starts) + 16*len(h.table)
}
