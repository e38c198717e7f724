// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"encoding/binary"
	"fmt"
)

// NodeKey is the primary key of the node store: a version and the path,
// within that version's tree, of the node. NodeKey is comparable and may
// be used directly as a Go map key.
type NodeKey struct {
	Version uint64
	Path    NibblePath
}

// RootNodeKey returns the NodeKey of the root of [version].
func RootNodeKey(version uint64) NodeKey {
	return NodeKey{Version: version, Path: EmptyNibblePath}
}

// Compare orders NodeKeys by version, then by path, matching spec.md
// section 3's NodeKey total order.
func (k NodeKey) Compare(other NodeKey) int {
	if k.Version != other.Version {
		if k.Version < other.Version {
			return -1
		}
		return 1
	}
	return k.Path.Compare(other.Path)
}

// Bytes serializes the key as the node store's wire format (spec.md
// section 6): 8 little-endian version bytes, 4 little-endian path-length
// bytes (length in nibbles), then the packed path bytes.
func (k NodeKey) Bytes() []byte {
	pathBytes := k.Path.Bytes()
	out := make([]byte, 12+len(pathBytes))
	binary.LittleEndian.PutUint64(out[:8], k.Version)
	binary.LittleEndian.PutUint32(out[8:12], uint32(k.Path.Size()))
	copy(out[12:], pathBytes)
	return out
}

// DecodeNodeKey parses the wire format produced by NodeKey.Bytes.
func DecodeNodeKey(b []byte) (NodeKey, error) {
	if len(b) < 12 {
		return NodeKey{}, fmt.Errorf("%w: node key needs at least 12 bytes, got %d", ErrMalformed, len(b))
	}
	version := binary.LittleEndian.Uint64(b[:8])
	numNibbles := int(binary.LittleEndian.Uint32(b[8:12]))
	packed := b[12:]
	path, err := nibblePathFromPacked(packed, numNibbles)
	if err != nil {
		return NodeKey{}, err
	}
	return NodeKey{Version: version, Path: path}, nil
}

func (k NodeKey) String() string {
	return fmt.Sprintf("v%d/%s", k.Version, k.Path.Hex())
}
