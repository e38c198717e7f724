// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"encoding/hex"
	"fmt"
)

// NibblePath is an ordered sequence of 4-bit nibbles, packed two per byte,
// high nibble first. It addresses a position in the trie: the nibble at
// index i is the branch taken at depth i during descent.
//
// The unused low nibble of the final byte of an odd-length path is always
// zero; this is an invariant enforced by every constructor and mutator in
// this file, not just a convention, because two paths compare equal only if
// their packed bytes are bit-for-bit identical.
type NibblePath struct {
	numNibbles int
	packed     string
}

// EmptyNibblePath is the zero-length path, i.e. the path to the root.
var EmptyNibblePath = NibblePath{}

// NibblePathFromHash builds the path that addresses the leaf for [h]: one
// nibble per 4 bits of the hash, high nibble first, 2*len(h) nibbles total.
func NibblePathFromHash(h Hash) NibblePath {
	return NibblePathFromBytes(h[:])
}

// NibblePathFromBytes builds the path consisting of every nibble of [b], in
// order, high nibble of b[0] first.
func NibblePathFromBytes(b []byte) NibblePath {
	return NibblePath{
		numNibbles: len(b) * 2,
		packed:     string(b),
	}
}

// nibblePathFromPacked reconstructs a path from its packed byte
// representation and an explicit nibble count, validating the padding
// invariant. This is the inverse of [NibblePath.Bytes] paired with
// [NibblePath.Size], and is what DecodeNodeKey uses to rebuild a NodeKey's
// path.
func nibblePathFromPacked(packed []byte, numNibbles int) (NibblePath, error) {
	wantBytes := (numNibbles + 1) / 2
	if len(packed) != wantBytes {
		return NibblePath{}, fmt.Errorf("%w: path of %d nibbles needs %d packed bytes, got %d", ErrMalformed, numNibbles, wantBytes, len(packed))
	}
	if numNibbles%2 == 1 && packed[len(packed)-1]&0x0F != 0 {
		return NibblePath{}, fmt.Errorf("%w: odd-length path has non-zero padding nibble", ErrMalformed)
	}
	return NibblePath{numNibbles: numNibbles, packed: string(packed)}, nil
}

// Size returns the number of nibbles in the path.
func (p NibblePath) Size() int {
	return p.numNibbles
}

// Bytes returns the packed byte representation of the path: two nibbles per
// byte, high nibble first, final low nibble zero-padded if the path has odd
// length.
func (p NibblePath) Bytes() []byte {
	return []byte(p.packed)
}

// Get returns the nibble at index i, or ErrOutOfRange if i is out of bounds.
func (p NibblePath) Get(i int) (byte, error) {
	if i < 0 || i >= p.numNibbles {
		return 0, fmt.Errorf("%w: nibble index %d out of range [0, %d)", ErrOutOfRange, i, p.numNibbles)
	}
	b := p.packed[i/2]
	if i%2 == 0 {
		return b >> 4, nil
	}
	return b & 0x0F, nil
}

// Push returns a new path with [nibble] appended. It fails with
// ErrInvalidArgument if nibble >= 16.
func (p NibblePath) Push(nibble byte) (NibblePath, error) {
	if nibble >= 16 {
		return NibblePath{}, fmt.Errorf("%w: nibble %d is not a valid 4-bit value", ErrInvalidArgument, nibble)
	}
	buf := []byte(p.packed)
	if p.numNibbles%2 == 0 {
		buf = append(buf, nibble<<4)
	} else {
		buf[len(buf)-1] |= nibble
	}
	return NibblePath{numNibbles: p.numNibbles + 1, packed: string(buf)}, nil
}

// Pop returns a new path with its trailing nibble removed, and the removed
// nibble. Popping an empty path is a no-op and returns (EmptyNibblePath, 0).
func (p NibblePath) Pop() (NibblePath, byte) {
	if p.numNibbles == 0 {
		return p, 0
	}
	last, _ := p.Get(p.numNibbles - 1)
	buf := []byte(p.packed)
	newLen := p.numNibbles - 1
	if newLen%2 == 0 {
		// The nibble we're dropping was the low nibble of the final byte;
		// that byte disappears entirely.
		buf = buf[:len(buf)-1]
	} else {
		// The nibble we're dropping was the high nibble of the final byte;
		// zero the now-unused low nibble to preserve the padding invariant.
		buf[len(buf)-1] &= 0xF0
	}
	return NibblePath{numNibbles: newLen, packed: string(buf)}, last
}

// Append returns a new path consisting of p followed by every nibble of
// [tail], in order. The trie engine does not call it: an Internal whose
// single remaining child is an Internal is kept at its own path.
func (p NibblePath) Append(tail NibblePath) NibblePath {
	out := p
	for i := 0; i < tail.numNibbles; i++ {
		n, _ := tail.Get(i)
		out, _ = out.Push(n)
	}
	return out
}

// Slice returns the sub-path p[start:end], in nibbles.
func (p NibblePath) Slice(start, end int) NibblePath {
	out := EmptyNibblePath
	for i := start; i < end; i++ {
		n, _ := p.Get(i)
		out, _ = out.Push(n)
	}
	return out
}

// Compare orders paths first by length, then lexicographically over their
// packed bytes. It returns -1, 0, or 1, matching the total order spec.md
// requires of NibblePath. The batch sort in normalizeUpdates compares key
// hashes with bytes.Compare instead, which yields the same order since all
// key-hash paths have the same length.
func (p NibblePath) Compare(other NibblePath) int {
	if p.numNibbles != other.numNibbles {
		if p.numNibbles < other.numNibbles {
			return -1
		}
		return 1
	}
	if p.packed < other.packed {
		return -1
	}
	if p.packed > other.packed {
		return 1
	}
	return 0
}

// Equal reports whether p and other have identical length and identical
// packed bytes, including padding.
func (p NibblePath) Equal(other NibblePath) bool {
	return p.numNibbles == other.numNibbles && p.packed == other.packed
}

// HasPrefix reports whether p begins with every nibble of prefix.
func (p NibblePath) HasPrefix(prefix NibblePath) bool {
	if prefix.numNibbles > p.numNibbles {
		return false
	}
	return p.Slice(0, prefix.numNibbles).Equal(prefix)
}

// Hex renders the path as a hex string, one character per nibble.
func (p NibblePath) Hex() string {
	s := hex.EncodeToString(p.Bytes())
	if p.numNibbles%2 == 1 {
		s = s[:len(s)-1]
	}
	return s
}

func (p NibblePath) String() string {
	return p.Hex()
}
