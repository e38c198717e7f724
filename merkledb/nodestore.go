// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

// NodeReader is the read-only contract the trie engine consumes for nodes
// it does not already hold in cache. It is synchronous: implementations
// must not block on network I/O from within GetNodeBytes, and must not retry —
// the engine treats any error as fatal to the batch in progress.
//
// This is the "external collaborator" of spec.md section 1: the durable
// write-ahead log / snapshot store backing it is out of this package's
// scope.
type NodeReader interface {
	// GetNodeBytes returns the framed bytes stored at key, or (nil, nil)
	// if no such node exists. A non-nil error means the underlying store
	// failed; the engine wraps it in ErrStorageError.
	GetNodeBytes(key NodeKey) ([]byte, error)
}

// NodeWrite is one (key, framed bytes) pair produced by a batch apply. A
// NodeBatch is the unit of durability: consumers must persist every
// NodeWrite in a batch atomically alongside the new root commitment, and
// must not persist a partial batch.
type NodeWrite struct {
	Key   NodeKey
	Bytes []byte
}

// NodeBatch is the ordered (for the caller's convenience only — per
// spec.md section 5 the order within a batch carries no meaning) sequence
// of node writes a single put_value_set call produced.
type NodeBatch []NodeWrite

// emptyNodeReader is a NodeReader over an always-empty base tree: every
// lookup returns (nil, nil). New substitutes it when given a nil reader.
type emptyNodeReader struct{}

func (emptyNodeReader) GetNodeBytes(NodeKey) ([]byte, error) {
	return nil, nil
}
