// Package metrics bundles the prometheus instruments the engine exposes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's counters and gauges. A bundle built with a nil
// registerer is fully functional but invisible, which keeps the engine free
// of nil checks.
type Metrics struct {
	SetsTotal        prometheus.Counter
	RemovesTotal     prometheus.Counter
	GetsTotal        prometheus.Counter
	CompactionsTotal prometheus.Counter
	ReclaimedBytes   prometheus.Counter
	UncompactedBytes prometheus.Gauge
	ActiveSegment    prometheus.Gauge
}

// New builds the metric bundle and registers it with r when r is non-nil.
func New(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		SetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ember_engine_sets_total",
			Help: "Total number of set records appended to the log.",
		}),
		RemovesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ember_engine_removes_total",
			Help: "Total number of remove records appended to the log.",
		}),
		GetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ember_engine_gets_total",
			Help: "Total number of lookups served.",
		}),
		CompactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ember_engine_compactions_total",
			Help: "Total number of compaction runs.",
		}),
		ReclaimedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ember_engine_reclaimed_bytes_total",
			Help: "Total dead bytes reclaimed by compaction.",
		}),
		UncompactedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ember_engine_uncompacted_bytes",
			Help: "Dead bytes accumulated since the last compaction.",
		}),
		ActiveSegment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ember_engine_active_segment",
			Help: "Id of the segment currently receiving appends.",
		}),
	}

	if r != nil {
		r.MustRegister(
			m.SetsTotal,
			m.RemovesTotal,
			m.GetsTotal,
			m.CompactionsTotal,
			m.ReclaimedBytes,
			m.UncompactedBytes,
			m.ActiveSegment,
		)
	}

	return m
}
