// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import "math/bits"

// ChildDescriptor is what an Internal node stores for one present child: the
// hash of the child subtree, and the version at which that child was
// created or last rewritten. origin_version is what makes the child
// addressable in the node store — it is the version component of the
// child's NodeKey.
type ChildDescriptor struct {
	Hash          Hash
	OriginVersion uint64
}

// SparseChildMap is a 16-bit presence mask paired with a dense, mask-order
// list of the present children's descriptors. It backs InternalNode.
//
// Invariant: len(dense) == popcount(mask), and the descriptor for nibble n
// (when present) sits at index popcount(mask & ((1<<n) - 1)) in dense.
// Absent children are never stored.
type SparseChildMap struct {
	mask  uint16
	dense []ChildDescriptor
}

// NewSparseChildMap returns an empty map.
func NewSparseChildMap() *SparseChildMap {
	return &SparseChildMap{}
}

// denseIndex returns the position nibble n's descriptor occupies (or would
// occupy, if absent) in the dense list.
func denseIndex(mask uint16, n byte) int {
	return bits.OnesCount16(mask & ((uint16(1) << n) - 1))
}

// Exists reports whether nibble n has a present child.
func (m *SparseChildMap) Exists(n byte) bool {
	return m.mask&(uint16(1)<<n) != 0
}

// IndexOf returns the dense-list index of nibble n's descriptor. It is only
// meaningful when Exists(n) is true.
func (m *SparseChildMap) IndexOf(n byte) int {
	return denseIndex(m.mask, n)
}

// Get returns the descriptor for nibble n and whether it is present.
func (m *SparseChildMap) Get(n byte) (ChildDescriptor, bool) {
	if !m.Exists(n) {
		return ChildDescriptor{}, false
	}
	return m.dense[m.IndexOf(n)], true
}

// Set inserts or replaces the descriptor for nibble n. Insertion shifts the
// dense list, so this is O(len(dense)).
func (m *SparseChildMap) Set(n byte, desc ChildDescriptor) {
	idx := denseIndex(m.mask, n)
	if m.Exists(n) {
		m.dense[idx] = desc
		return
	}
	m.dense = append(m.dense, ChildDescriptor{})
	copy(m.dense[idx+1:], m.dense[idx:])
	m.dense[idx] = desc
	m.mask |= uint16(1) << n
}

// Remove deletes the descriptor for nibble n, if present.
func (m *SparseChildMap) Remove(n byte) {
	if !m.Exists(n) {
		return
	}
	idx := m.IndexOf(n)
	m.dense = append(m.dense[:idx], m.dense[idx+1:]...)
	m.mask &^= uint16(1) << n
}

// Popcount returns the number of present children, i.e. len(dense).
func (m *SparseChildMap) Popcount() int {
	return len(m.dense)
}

// RawMask returns the 16-bit presence mask.
func (m *SparseChildMap) RawMask() uint16 {
	return m.mask
}

// Nibbles returns the present nibbles in ascending order. This is the
// canonical iteration order for serialization and for the recursive
// trie-build algorithm's child-by-child combination step.
func (m *SparseChildMap) Nibbles() []byte {
	out := make([]byte, 0, len(m.dense))
	for n := byte(0); n < 16; n++ {
		if m.Exists(n) {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m *SparseChildMap) Clone() *SparseChildMap {
	out := &SparseChildMap{
		mask:  m.mask,
		dense: make([]ChildDescriptor, len(m.dense)),
	}
	copy(out.dense, m.dense)
	return out
}
