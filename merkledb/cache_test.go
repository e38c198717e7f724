// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func leafAt(s string) *Node {
	return NewLeafNode(HashKey([]byte(s)), HashValue([]byte(s)))
}

func Test_NodeCache_GetPutClear(t *testing.T) {
	require := require.New(t)

	c := NewNodeCache(8, nil)
	key := RootNodeKey(1)
	_, ok := c.Get(key)
	require.False(ok)

	n := leafAt("a")
	c.Put(key, n)
	got, ok := c.Get(key)
	require.True(ok)
	require.Equal(n, got)
	require.Equal(1, c.Size())

	c.Clear()
	require.Equal(0, c.Size())
	_, ok = c.Get(key)
	require.False(ok)
}

func Test_NodeCache_EvictsLeastRecentlyUsed(t *testing.T) {
	require := require.New(t)

	c := NewNodeCache(2, nil)
	k1, k2, k3 := RootNodeKey(1), RootNodeKey(2), RootNodeKey(3)
	c.Put(k1, leafAt("1"))
	c.Put(k2, leafAt("2"))

	// Touch k1 so it becomes most-recently-used; k2 is now the LRU entry.
	_, ok := c.Get(k1)
	require.True(ok)

	c.Put(k3, leafAt("3"))
	require.Equal(2, c.Size())

	_, ok = c.Get(k2)
	require.False(ok, "k2 should have been evicted as the least recently used entry")

	_, ok = c.Get(k1)
	require.True(ok)
	_, ok = c.Get(k3)
	require.True(ok)
}

func Test_SpeculativeCache_IsolatesWritesFromBase(t *testing.T) {
	require := require.New(t)

	base := NewNodeCache(8, nil)
	spec := NewSpeculativeCache(base, nil)

	key := RootNodeKey(1)
	spec.Put(key, leafAt("speculative"))

	got, ok := spec.Get(key)
	require.True(ok)
	require.Equal(leafAt("speculative"), got)

	// The base must never observe the speculative write.
	_, ok = base.Get(key)
	require.False(ok)
	require.Equal(0, base.Size())

	spec.Clear()
	_, ok = spec.Get(key)
	require.False(ok)
}

func Test_SpeculativeCache_FallsThroughToBase(t *testing.T) {
	require := require.New(t)

	base := NewNodeCache(8, nil)
	key := RootNodeKey(1)
	base.Put(key, leafAt("base"))

	spec := NewSpeculativeCache(base, nil)
	got, ok := spec.Get(key)
	require.True(ok)
	require.Equal(leafAt("base"), got)
}

func Test_SpeculativeCache_InjectedNodesAreVisibleButNotPersisted(t *testing.T) {
	require := require.New(t)

	base := NewNodeCache(8, nil)
	spec := NewSpeculativeCache(base, nil)

	key := RootNodeKey(5)
	spec.Inject(key, leafAt("warm"))

	got, ok := spec.Get(key)
	require.True(ok)
	require.Equal(leafAt("warm"), got)

	_, ok = base.Get(key)
	require.False(ok)
	require.Equal(1, spec.Size())
}

func Test_SpeculativeCache_OverlayShadowsInjected(t *testing.T) {
	require := require.New(t)

	spec := NewSpeculativeCache(nil, nil)
	key := RootNodeKey(1)
	spec.Inject(key, leafAt("injected"))
	spec.Put(key, leafAt("overlay"))

	got, ok := spec.Get(key)
	require.True(ok)
	require.Equal(leafAt("overlay"), got)
}
