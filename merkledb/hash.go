// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashLength is H, the fixed width in bytes of every hash this package
// produces or stores: node hashes, key hashes, and value hashes alike.
//
// The reference implementation this package is derived from
// (_examples/original_source) fixed this at 64 bytes by hashing with
// BLAKE3's extendable output rather than its default 32-byte digest; we
// keep that width here so root hashes computed by this package are
// compatible with that reference.
const HashLength = 64

// Hash is a fixed-width, opaque digest. The zero Hash is the all-zero hash
// spec.md uses to denote the empty tree's root.
type Hash [HashLength]byte

// EmptyHash is the all-zero hash returned as the root of the empty tree.
var EmptyHash Hash

// IsEmpty reports whether h is the all-zero hash.
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// domain separators, one per node kind, prepended to a node's canonical
// bytes before hashing so that an Internal and a Leaf can never collide
// even if their canonical encodings happen to coincide byte-for-byte.
var (
	internalNodeDomain = []byte("XookMerkleTrie_InternalNode_V2")
	leafNodeDomain     = []byte("XookMerkleTrie_LeafNode_V2")
)

// hashBytes computes the HashLength-byte BLAKE3 digest of the concatenation
// of [parts]. BLAKE3's extendable output (Digest.Read) is used rather than
// its default 32-byte Sum so the result fills the full H-byte width this
// package commits to.
func hashBytes(parts ...[]byte) Hash {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out Hash
	d := h.Digest()
	_, _ = d.Read(out[:])
	return out
}

// HashKey hashes a raw, variable-length account key into a fixed-width Hash
// suitable for use as a trie key. Callers MUST route every raw key through
// this function rather than padding or truncating it to HashLength: padding
// collides different-length keys that share a prefix, which silently breaks
// the determinism and uniqueness guarantees of the trie (spec.md section 9,
// "Determinism pitfalls", and the fix the original source calls out for
// exactly this bug with short/non-uniform-length keys).
func HashKey(rawKey []byte) Hash {
	return hashBytes(rawKey)
}

// HashValue hashes a raw value into the fixed-width value hash a LeafNode
// stores. The trie never stores raw values, only this digest.
func HashValue(rawValue []byte) Hash {
	return hashBytes(rawValue)
}

func hashInternal(canonical []byte) Hash {
	return hashBytes(internalNodeDomain, canonical)
}

func hashLeaf(canonical []byte) Hash {
	return hashBytes(leafNodeDomain, canonical)
}
