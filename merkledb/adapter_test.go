// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Accumulator_PutThenCalculateRoot(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	trie := New(store, nil, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("1")))
	acc.Put([]byte("beta"), HashValue([]byte("2")))

	batch, err := acc.CalculateRoot(nil, 1)
	require.NoError(err)
	store.persist(batch)

	require.Equal(uint64(1), acc.Version())
	require.False(acc.RootHash().IsEmpty())

	got, err := trie.Get(HashKey([]byte("alpha")), 1)
	require.NoError(err)
	require.True(got.HasValue())
}

func Test_Accumulator_PendingClearedAfterFlush(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	trie := New(store, nil, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("1")))
	batch1, err := acc.CalculateRoot(nil, 1)
	require.NoError(err)
	store.persist(batch1)
	rootAfterFirstFlush := acc.RootHash()

	// A second flush with no new Put calls and no extra updates should be a
	// true no-op: the pending set was cleared by the first flush.
	batch2, err := acc.CalculateRoot(nil, 2)
	require.NoError(err)
	require.Empty(batch2)
	require.Equal(rootAfterFirstFlush, acc.RootHash())
}

func Test_Accumulator_ExtraUpdatesOverridePending(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	trie := New(store, nil, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("stale")))
	extra := []Update{{KeyHash: HashKey([]byte("alpha")), Value: Some(HashValue([]byte("fresh")))}}

	batch, err := acc.CalculateRoot(extra, 1)
	require.NoError(err)
	store.persist(batch)

	got, err := trie.Get(HashKey([]byte("alpha")), 1)
	require.NoError(err)
	require.Equal(HashValue([]byte("fresh")), got.Value())
}

func Test_Accumulator_DeleteStagesADeletion(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	trie := New(store, nil, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("1")))
	batch1, err := acc.CalculateRoot(nil, 1)
	require.NoError(err)
	store.persist(batch1)

	acc.Delete([]byte("alpha"))
	batch2, err := acc.CalculateRoot(nil, 2)
	require.NoError(err)
	store.persist(batch2)

	require.True(acc.RootHash().IsEmpty())
	got, err := trie.Get(HashKey([]byte("alpha")), 2)
	require.NoError(err)
	require.True(got.IsNothing())
}

func Test_Accumulator_SpeculativeCalculationDoesNotMutateCommittedState(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	cache := NewNodeCache(64, nil)
	trie := New(store, cache, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("1")))
	batch1, err := acc.CalculateRoot(nil, 1)
	require.NoError(err)
	store.persist(batch1)

	committedRoot := acc.RootHash()
	committedVersion := acc.Version()
	baseCacheSize := cache.Size()

	extra := []Update{{KeyHash: HashKey([]byte("beta")), Value: Some(HashValue([]byte("2")))}}
	specRoot, specBatch, err := acc.CalculateRootSpeculative(extra, 2, nil)
	require.NoError(err)
	require.NotEqual(committedRoot, specRoot)
	require.NotEmpty(specBatch)

	// Nothing speculative leaked into the committed state or the base cache.
	require.Equal(committedRoot, acc.RootHash())
	require.Equal(committedVersion, acc.Version())
	require.Equal(baseCacheSize, cache.Size())

	missing, err := trie.Get(HashKey([]byte("beta")), 1)
	require.NoError(err)
	require.True(missing.IsNothing())
}

func Test_Accumulator_SpeculativeInjectedParentNodesSeedProof(t *testing.T) {
	require := require.New(t)

	store := newMemStore()
	trie := New(store, nil, nil, nil)
	acc := NewAccumulator(trie, 0, EmptyHash)

	acc.Put([]byte("alpha"), HashValue([]byte("1")))
	batch1, err := acc.CalculateRoot(nil, 1)
	require.NoError(err)
	// Intentionally do NOT persist batch1 into store: the speculative call
	// must resolve the parent chain purely from the injected nodes.
	injected := make([]NodeWrite, len(batch1))
	copy(injected, batch1)
	// CalculateRoot also put batch1's nodes into the trie's base cache; drop
	// them so only the injected nodes can supply the parent chain.
	trie.cache.Clear()

	extra := []Update{{KeyHash: HashKey([]byte("alpha")), Value: Some(HashValue([]byte("2")))}}
	root, _, err := acc.CalculateRootSpeculative(extra, 2, injected)
	require.NoError(err)
	require.False(root.IsEmpty())
}
