// Package index provides the in-memory map from live keys to the byte
// ranges of their latest set records in segment files. The index is the
// only structure consulted on the read path before touching disk: a lookup
// yields a CmdIdx, and the engine reads exactly that range.
//
// The map holds every key in memory with minimal metadata (segment id,
// offset, length: 20 bytes of fields plus the key), which is what lets the store
// serve datasets larger than RAM with a single seek per read.
package index

import (
	"slices"
	"sync"
)

// CmdIdx locates the encoded set record of a live key: the bytes
// [Pos, Pos+Len) of segment File decode to that record. Remove records are
// never indexed.
type CmdIdx struct {
	File uint32 // Segment id holding the record.
	Pos  uint64 // Byte offset of the record's first byte.
	Len  uint64 // Encoded length of the record.
}

// Index maps keys to the location of their latest set record. Only the
// writer mutates it; readers take the lock briefly to copy a CmdIdx before
// performing I/O.
type Index struct {
	mu      sync.RWMutex
	entries map[string]CmdIdx
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]CmdIdx, 1024)}
}

// Insert installs idx for key and returns the displaced entry, if any.
func (i *Index) Insert(key string, idx CmdIdx) (CmdIdx, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	old, ok := i.entries[key]
	i.entries[key] = idx
	return old, ok
}

// Remove deletes key and returns the displaced entry, if any.
func (i *Index) Remove(key string) (CmdIdx, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	old, ok := i.entries[key]
	if ok {
		delete(i.entries, key)
	}
	return old, ok
}

// Get returns the entry for key.
func (i *Index) Get(key string) (CmdIdx, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	idx, ok := i.entries[key]
	return idx, ok
}

// Contains reports whether key is live.
func (i *Index) Contains(key string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	_, ok := i.entries[key]
	return ok
}

// Update overwrites the entry for an existing key. Used by compaction to
// redirect entries into the compaction segment.
func (i *Index) Update(key string, idx CmdIdx) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[key] = idx
}

// Len returns the number of live keys.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.entries)
}

// Keys returns every live key in sorted order. Sorting keeps iteration
// deterministic for compaction and tests; correctness does not depend on
// the order.
func (i *Index) Keys() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := make([]string, 0, len(i.entries))
	for key := range i.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// LiveBytes returns the sum of Len over all entries.
func (i *Index) LiveBytes() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var total uint64
	for _, idx := range i.entries {
		total += idx.Len
	}
	return total
}
