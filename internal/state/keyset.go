// Package state tracks endpoint identity sets and persists contract snapshots.
package state

import (
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Key identifies an endpoint by HTTP method and normalized path.
type Key struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// String renders the key as "METHOD path".
func (k Key) String() string {
	return k.Method + " " + k.Path
}

// Less orders keys by path, then method.
func (k Key) Less(other Key) bool {
	if k.Path != other.Path {
		return k.Path < other.Path
	}
	return k.Method < other.Method
}

// SortKeys sorts keys in place by path, then method.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// KeySet is a set of endpoint keys. A Bloom filter answers most negative
// membership tests; an exact map resolves its false positives.
type KeySet struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[Key]struct{}
	order  []Key
}

// NewKeySet creates a key set sized for roughly estimated keys.
func NewKeySet(estimated int) *KeySet {
	if estimated < 1000 {
		estimated = 1000
	}

	return &KeySet{
		filter: bloom.NewWithEstimates(uint(estimated), 0.001),
		exact:  make(map[Key]struct{}),
	}
}

// KeySetOf builds a set from keys.
func KeySetOf(keys ...Key) *KeySet {
	s := NewKeySet(len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k and reports whether it was new.
func (s *KeySet) Add(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A filter miss is definitive; only a hit needs the exact map.
	ks := k.String()
	if s.filter.TestString(ks) {
		if _, exists := s.exact[k]; exists {
			return false
		}
	}
	s.filter.AddString(ks)
	s.exact[k] = struct{}{}
	s.order = append(s.order, k)
	return true
}

// Has reports whether k is in the set.
func (s *KeySet) Has(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filter.TestString(k.String()) {
		return false
	}
	_, exists := s.exact[k]
	return exists
}

// Len returns the number of distinct keys.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exact)
}

// Inserted returns keys in insertion order.
func (s *KeySet) Inserted() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}

// Sorted returns keys ordered by path, then method.
func (s *KeySet) Sorted() []Key {
	out := s.Inserted()
	SortKeys(out)
	return out
}

// Minus returns the sorted keys of s that are absent from other.
func (s *KeySet) Minus(other *KeySet) []Key {
	var out []Key
	for _, k := range s.Sorted() {
		if !other.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Intersect returns the sorted keys present in both sets.
func (s *KeySet) Intersect(other *KeySet) []Key {
	var out []Key
	for _, k := range s.Sorted() {
		if other.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
