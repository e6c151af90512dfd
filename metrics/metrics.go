// Package metrics exposes Prometheus collectors for the graph engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "splitgraph"

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	PartitionsCreated prometheus.Counter
	GCPasses          prometheus.Counter
	GCNodesRemoved    prometheus.Counter
	UpdatesApplied    prometheus.Counter
	UpdatesSkipped    *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PartitionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_created_total",
			Help:      "Partitions created by node placement or replay.",
		}),
		GCPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_passes_total",
			Help:      "Garbage collection passes run.",
		}),
		GCNodesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_nodes_removed_total",
			Help:      "Nodes removed by garbage collection.",
		}),
		UpdatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_applied_total",
			Help:      "Updates applied during replay.",
		}),
		UpdatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_skipped_total",
			Help:      "Updates skipped during replay because a reference could not be resolved.",
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_cache_lookups_total",
			Help:      "Node id cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PartitionsCreated,
			m.GCPasses,
			m.GCNodesRemoved,
			m.UpdatesApplied,
			m.UpdatesSkipped,
			m.CacheLookups,
		)
	}
	return m
}

func (m *Metrics) PartitionCreated() {
	if m == nil {
		return
	}
	m.PartitionsCreated.Inc()
}

// GCPass records one collection pass and the nodes it removed.
func (m *Metrics) GCPass(removed int) {
	if m == nil {
		return
	}
	m.GCPasses.Inc()
	m.GCNodesRemoved.Add(float64(removed))
}

func (m *Metrics) UpdateApplied() {
	if m == nil {
		return
	}
	m.UpdatesApplied.Inc()
}

func (m *Metrics) UpdateSkipped(kind string) {
	if m == nil {
		return
	}
	m.UpdatesSkipped.WithLabelValues(kind).Inc()
}

// CacheLookup records an id cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
