// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"sync"

	"go.uber.org/zap"
)

// Accumulator is the single-key-at-a-time facade over Trie.PutValueSet,
// grounded on _examples/original_source/xook_adapter.hpp's XookAdapter:
// callers call Put repeatedly as they process a block or transaction, then
// CalculateRoot flushes everything accumulated (plus any extra updates
// supplied at call time) as one sorted batch and clears the pending set.
//
// CalculateRootSpeculative is the same flush, but run against a fresh
// SpeculativeCache seeded with externally supplied parent-chain nodes and
// never touching the base cache or the accumulator's committed state —
// xook_adapter.hpp's calculate_root_speculative with its parent_nodes
// injection parameter.
type Accumulator struct {
	mu      sync.Mutex
	trie    *Trie
	pending map[Hash]Maybe[Hash]
	version uint64
	root    Hash
	logger  *zap.Logger
}

// NewAccumulator returns an Accumulator over [trie], starting from
// [startRoot] at [startVersion].
func NewAccumulator(trie *Trie, startVersion uint64, startRoot Hash) *Accumulator {
	return &Accumulator{
		trie:    trie,
		pending: make(map[Hash]Maybe[Hash]),
		version: startVersion,
		root:    startRoot,
		logger:  zap.NewNop(),
	}
}

// SetLogger attaches a logger used for accumulator-level diagnostics.
func (a *Accumulator) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logger
}

// Put hashes [rawKey] and stages an upsert of [valueHash] under it. The
// write is not visible to Get until CalculateRoot is called; raw key
// hashing happens here so callers never have to reason about HashKey
// themselves.
func (a *Accumulator) Put(rawKey []byte, valueHash Hash) {
	keyHash := HashKey(rawKey)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[keyHash] = Some(valueHash)
}

// Delete stages a deletion of [rawKey].
func (a *Accumulator) Delete(rawKey []byte) {
	keyHash := HashKey(rawKey)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[keyHash] = Nothing[Hash]()
}

// RootHash returns the root hash as of the last successful CalculateRoot
// call (or the starting root, if none has happened yet).
func (a *Accumulator) RootHash() Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.root
}

// Version returns the version as of the last successful CalculateRoot call.
func (a *Accumulator) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// CalculateRoot merges [extraUpdates] with everything accumulated via Put
// and Delete since the last flush into one sorted batch, applies it atop
// the accumulator's current (version, root) under [newVersion], clears the
// pending set, and advances the accumulator's committed state to the
// result. extraUpdates take precedence over pending entries for the same
// key hash, matching xook_adapter.hpp's merge-then-flush contract.
func (a *Accumulator) CalculateRoot(extraUpdates []Update, newVersion uint64) (NodeBatch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := make(map[Hash]Maybe[Hash], len(a.pending)+len(extraUpdates))
	for k, v := range a.pending {
		merged[k] = v
	}
	for _, u := range extraUpdates {
		merged[u.KeyHash] = u.Value
	}

	updates := make([]Update, 0, len(merged))
	for k, v := range merged {
		updates = append(updates, Update{KeyHash: k, Value: v})
	}

	var baseVersion Maybe[uint64]
	if a.root != EmptyHash || a.version != 0 {
		baseVersion = Some(a.version)
	}

	newRoot, batch, err := a.trie.PutValueSet(updates, newVersion, a.root, baseVersion)
	if err != nil {
		return nil, err
	}

	a.pending = make(map[Hash]Maybe[Hash])
	a.version = newVersion
	a.root = newRoot
	a.logger.Debug("accumulator root recalculated",
		zap.Uint64("version", newVersion),
		zap.String("root", newRoot.String()),
		zap.Int("updates", len(updates)),
	)
	return batch, nil
}

// CalculateRootSpeculative computes the root that would result from
// flushing [extraUpdates] plus the currently pending set, without
// committing: the accumulator's (version, root) and pending set are left
// untouched, and the trie's base node cache never observes this work. A
// fresh SpeculativeCache is seeded with [injected] — warm parent-chain
// nodes the caller already has in hand, e.g. from a peer's proof — so this
// computation does not have to re-fetch them through the reader.
//
// This is xook_adapter.hpp's calculate_root_speculative: the mechanism a
// TEE or pre-execution path uses to learn what a batch of writes would
// produce as a root, before deciding to actually commit it.
func (a *Accumulator) CalculateRootSpeculative(extraUpdates []Update, newVersion uint64, injected []NodeWrite) (Hash, NodeBatch, error) {
	a.mu.Lock()
	merged := make(map[Hash]Maybe[Hash], len(a.pending)+len(extraUpdates))
	for k, v := range a.pending {
		merged[k] = v
	}
	for _, u := range extraUpdates {
		merged[u.KeyHash] = u.Value
	}
	baseRoot := a.root
	baseVersionVal := a.version
	haveBase := baseRoot != EmptyHash || baseVersionVal != 0
	reader := a.trie.reader
	baseCache := a.trie.cache
	metrics := a.trie.metrics
	logger := a.trie.logger
	a.mu.Unlock()

	updates := make([]Update, 0, len(merged))
	for k, v := range merged {
		updates = append(updates, Update{KeyHash: k, Value: v})
	}

	speculative := NewSpeculativeCache(baseCache, metrics)
	for _, w := range injected {
		node, err := DecodeFramed(w.Bytes)
		if err != nil {
			return Hash{}, nil, err
		}
		speculative.Inject(w.Key, node)
	}

	scratch := New(reader, speculative, metrics, logger)

	var baseVersion Maybe[uint64]
	if haveBase {
		baseVersion = Some(baseVersionVal)
	}
	return scratch.PutValueSet(updates, newVersion, baseRoot, baseVersion)
}
