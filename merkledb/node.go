// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"encoding/binary"
	"fmt"
)

// NodeKind tags the closed sum of node variants this package knows how to
// serialize. It is the one-byte prefix of a node's framed encoding.
type NodeKind byte

const (
	// InternalKind tags an InternalNode in framed encoding.
	InternalKind NodeKind = 0x01
	// LeafKind tags a LeafNode in framed encoding.
	LeafKind NodeKind = 0x02
)

func (k NodeKind) String() string {
	switch k {
	case InternalKind:
		return "Internal"
	case LeafKind:
		return "Leaf"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(k))
	}
}

// InternalNode is a branch node: a sparse map from nibble to child
// descriptor. The batch-apply algorithm collapses an Internal whose only
// child is a Leaf into that Leaf, but keeps (and writes) an Internal whose
// only child is another Internal, so a stored InternalNode may have a single
// child.
type InternalNode struct {
	Children *SparseChildMap
}

// LeafNode stores the hash of an account key and the hash of its value.
// Never the raw value — that is the caller's concern, upstream of this
// package.
type LeafNode struct {
	KeyHash   Hash
	ValueHash Hash
}

// Node is the tagged union {Internal, Leaf}. Exactly one of Internal or
// Leaf is non-nil, selected by Kind.
type Node struct {
	Kind     NodeKind
	Internal *InternalNode
	Leaf     *LeafNode
}

// NewInternalNode wraps [children] as an Internal Node.
func NewInternalNode(children *SparseChildMap) *Node {
	return &Node{Kind: InternalKind, Internal: &InternalNode{Children: children}}
}

// NewLeafNode builds a Leaf Node from a key hash and value hash.
func NewLeafNode(keyHash, valueHash Hash) *Node {
	return &Node{Kind: LeafKind, Leaf: &LeafNode{KeyHash: keyHash, ValueHash: valueHash}}
}

// Canonical returns the node's canonical byte encoding (no kind tag), per
// spec.md section 4.3:
//
//	Internal: mask:2 || for each child, ascending nibble order: hash:H || origin_version:8
//	Leaf:     key_hash:H || value_hash:H
func (n *Node) Canonical() []byte {
	switch n.Kind {
	case InternalKind:
		return encodeInternalCanonical(n.Internal)
	case LeafKind:
		return encodeLeafCanonical(n.Leaf)
	default:
		panic(fmt.Sprintf("merkledb: Canonical called on node with unknown kind %v", n.Kind))
	}
}

func encodeInternalCanonical(in *InternalNode) []byte {
	mask := in.Children.RawMask()
	popcount := in.Children.Popcount()
	out := make([]byte, 2+popcount*(HashLength+8))
	binary.LittleEndian.PutUint16(out, mask)
	offset := 2
	for _, n := range in.Children.Nibbles() {
		desc, _ := in.Children.Get(n)
		copy(out[offset:offset+HashLength], desc.Hash[:])
		offset += HashLength
		binary.LittleEndian.PutUint64(out[offset:offset+8], desc.OriginVersion)
		offset += 8
	}
	return out
}

func encodeLeafCanonical(lf *LeafNode) []byte {
	out := make([]byte, 2*HashLength)
	copy(out[:HashLength], lf.KeyHash[:])
	copy(out[HashLength:], lf.ValueHash[:])
	return out
}

// Framed returns the node's framed encoding: a one-byte kind tag followed
// by its canonical bytes. This is the representation the node store reads
// and writes.
func (n *Node) Framed() []byte {
	canonical := n.Canonical()
	out := make([]byte, 1+len(canonical))
	out[0] = byte(n.Kind)
	copy(out[1:], canonical)
	return out
}

// Hash returns the domain-separated hash of the node: hashfn(domain(kind)
// || canonical(node)). Domain separation guarantees an Internal and a Leaf
// never collide even if their canonical bytes happen to coincide.
func (n *Node) Hash() Hash {
	switch n.Kind {
	case InternalKind:
		return hashInternal(encodeInternalCanonical(n.Internal))
	case LeafKind:
		return hashLeaf(encodeLeafCanonical(n.Leaf))
	default:
		panic(fmt.Sprintf("merkledb: Hash called on node with unknown kind %v", n.Kind))
	}
}

// DecodeFramed parses framed node bytes back into a Node. Decoding is
// strict: unknown tags, truncated input, and trailing bytes after the
// expected length are all ErrMalformed. This strictness preserves the
// bijection between node values and bytes that the domain-separated hash
// depends on (spec.md section 4.3).
func DecodeFramed(b []byte) (*Node, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	kind := NodeKind(b[0])
	body := b[1:]
	switch kind {
	case LeafKind:
		lf, err := decodeLeafCanonical(body)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: LeafKind, Leaf: lf}, nil
	case InternalKind:
		in, err := decodeInternalCanonical(body)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: InternalKind, Internal: in}, nil
	default:
		return nil, fmt.Errorf("%w: %w: tag 0x%02x", ErrMalformed, ErrUnknownNodeKind, b[0])
	}
}

func decodeLeafCanonical(body []byte) (*LeafNode, error) {
	const want = 2 * HashLength
	if len(body) != want {
		return nil, fmt.Errorf("%w: leaf node needs exactly %d bytes, got %d", ErrMalformed, want, len(body))
	}
	lf := &LeafNode{}
	copy(lf.KeyHash[:], body[:HashLength])
	copy(lf.ValueHash[:], body[HashLength:])
	return lf, nil
}

func decodeInternalCanonical(body []byte) (*InternalNode, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: internal node needs at least 2 mask bytes, got %d", ErrMalformed, len(body))
	}
	mask := binary.LittleEndian.Uint16(body[:2])
	popcount := popcountUint16(mask)
	const descLen = HashLength + 8
	want := 2 + popcount*descLen
	if len(body) != want {
		return nil, fmt.Errorf("%w: internal node with mask 0x%04x needs exactly %d bytes, got %d", ErrMalformed, mask, want, len(body))
	}
	children := NewSparseChildMap()
	offset := 2
	for n := byte(0); n < 16; n++ {
		if mask&(uint16(1)<<n) == 0 {
			continue
		}
		var desc ChildDescriptor
		copy(desc.Hash[:], body[offset:offset+HashLength])
		offset += HashLength
		desc.OriginVersion = binary.LittleEndian.Uint64(body[offset : offset+8])
		offset += 8
		children.Set(n, desc)
	}
	return &InternalNode{Children: children}, nil
}

func popcountUint16(v uint16) int {
	count := 0
	for v != 0 {
		count += int(v & 1)
		v >>= 1
	}
	return count
}
