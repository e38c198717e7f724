// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Metrics = (*noopMetrics)(nil)
	_ Metrics = (*prometheusMetrics)(nil)
)

// Metrics is the counter set the engine and cache report to. Base and
// speculative cache activity are counted separately so an operator can
// confirm that speculative recomputation (spec.md "Speculative isolation")
// isn't quietly falling back to the base cache.
type Metrics interface {
	HashCalculated()
	ReaderRead()
	NodeCacheHit()
	NodeCacheMiss()
	SpeculativeCacheHit()
	SpeculativeCacheMiss()
	BatchApplied(nodeCount int)
}

// noopMetrics discards everything; it is the default when no
// prometheus.Registerer is supplied, mirroring the teacher's mockMetrics
// fallback in x/merkledb/metrics.go.
type noopMetrics struct{}

func (*noopMetrics) HashCalculated()       {}
func (*noopMetrics) ReaderRead()           {}
func (*noopMetrics) NodeCacheHit()         {}
func (*noopMetrics) NodeCacheMiss()        {}
func (*noopMetrics) SpeculativeCacheHit()  {}
func (*noopMetrics) SpeculativeCacheMiss() {}
func (*noopMetrics) BatchApplied(int)      {}

type prometheusMetrics struct {
	hashCount            prometheus.Counter
	readerReads          prometheus.Counter
	nodeCacheHit         prometheus.Counter
	nodeCacheMiss        prometheus.Counter
	speculativeCacheHit  prometheus.Counter
	speculativeCacheMiss prometheus.Counter
	batchesApplied       prometheus.Counter
	nodesWritten         prometheus.Counter
}

// NewPrometheusMetrics registers the trie's counters under [namespace] on
// [reg]. Adapted from x/merkledb/metrics.go's newMetrics: same
// Namespace/Name/Help shape, narrowed to the counters this package's
// components (reader, cache, engine) actually emit.
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) (Metrics, error) {
	if reg == nil {
		return &noopMetrics{}, nil
	}
	m := &prometheusMetrics{
		hashCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hashes_calculated",
			Help:      "cumulative number of node hashes computed",
		}),
		readerReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reader_reads",
			Help:      "cumulative number of NodeReader.GetNodeBytes calls",
		}),
		nodeCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_cache_hit",
			Help:      "cumulative hits on the base node cache",
		}),
		nodeCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_cache_miss",
			Help:      "cumulative misses on the base node cache",
		}),
		speculativeCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speculative_cache_hit",
			Help:      "cumulative hits resolved from a speculative overlay or its injected set",
		}),
		speculativeCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speculative_cache_miss",
			Help:      "cumulative misses falling through a speculative overlay to its base",
		}),
		batchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_applied",
			Help:      "cumulative number of successful put_value_set calls with a non-empty update batch",
		}),
		nodesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_written",
			Help:      "cumulative number of nodes emitted across all batches",
		}),
	}
	e := &errs{}
	e.add(reg.Register(m.hashCount))
	e.add(reg.Register(m.readerReads))
	e.add(reg.Register(m.nodeCacheHit))
	e.add(reg.Register(m.nodeCacheMiss))
	e.add(reg.Register(m.speculativeCacheHit))
	e.add(reg.Register(m.speculativeCacheMiss))
	e.add(reg.Register(m.batchesApplied))
	e.add(reg.Register(m.nodesWritten))
	return m, e.err
}

func (m *prometheusMetrics) HashCalculated()       { m.hashCount.Inc() }
func (m *prometheusMetrics) ReaderRead()           { m.readerReads.Inc() }
func (m *prometheusMetrics) NodeCacheHit()         { m.nodeCacheHit.Inc() }
func (m *prometheusMetrics) NodeCacheMiss()        { m.nodeCacheMiss.Inc() }
func (m *prometheusMetrics) SpeculativeCacheHit()  { m.speculativeCacheHit.Inc() }
func (m *prometheusMetrics) SpeculativeCacheMiss() { m.speculativeCacheMiss.Inc() }
func (m *prometheusMetrics) BatchApplied(nodeCount int) {
	m.batchesApplied.Inc()
	m.nodesWritten.Add(float64(nodeCount))
}
