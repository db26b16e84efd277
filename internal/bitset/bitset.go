// Package bitset provides a growable bitset keyed by dense node slots.
package bitset

import "math/bits"

// BitSet is a growable set of uint32 keys. It is not safe for concurrent
// use; callers synchronize externally.
type BitSet struct {
	words []uint64
}

// New creates a bitset sized for at least n keys.
func New(n uint32) *BitSet {
	return &BitSet{words: make([]uint64, (n+63)/64)}
}

// Grow ensures the bitset can hold at least n keys.
func (b *BitSet) Grow(n uint32) {
	need := int(n+63) / 64
	if need <= len(b.words) {
		return
	}
	newCap := len(b.words) * 2
	if newCap < need {
		newCap = need
	}
	words := make([]uint64, newCap)
	copy(words, b.words)
	b.words = words
}

// Set marks key i as present, growing as needed.
func (b *BitSet) Set(i uint32) {
	b.Grow(i + 1)
	b.words[i>>6] |= uint64(1) << (i & 63)
}

// Unset clears key i.
func (b *BitSet) Unset(i uint32) {
	if int(i>>6) < len(b.words) {
		b.words[i>>6] &^= uint64(1) << (i & 63)
	}
}

// Test reports whether key i is present.
func (b *BitSet) Test(i uint32) bool {
	if int(i>>6) >= len(b.words) {
		return false
	}
	return b.words[i>>6]&(uint64(1)<<(i&63)) != 0
}

// Count returns the number of set keys.
func (b *BitSet) Count() int {
	total := 0
	for _, w := range b.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// ClearAll removes every key without releasing storage.
func (b *BitSet) ClearAll() {
	for i := range b.words {
		b.words[i] = 0
	}
}
