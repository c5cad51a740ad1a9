package search

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the search subsystem.
type Metrics struct {
	SearchesTotal   *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	ResolveDuration prometheus.Histogram
	ResolveErrors   prometheus.Counter
	ChunksTotal     *prometheus.CounterVec
	ChunkDuration   *prometheus.HistogramVec
	RecordsPerRun   prometheus.Histogram
	GroupsPerRun    prometheus.Histogram
	HistoryErrors   *prometheus.CounterVec
	NotifyTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns search metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcscope_searches_total",
			Help: "Total searches by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tcscope_search_duration_seconds",
			Help:    "Duration of complete searches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~102s
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcscope_resolve_duration_seconds",
			Help:    "Duration of summary match requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}),
		ResolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcscope_resolve_errors_total",
			Help: "Total failed summary match requests.",
		}),
		ChunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcscope_chunks_total",
			Help: "Total detail chunk requests by outcome.",
		}, []string{"outcome"}),
		ChunkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tcscope_chunk_duration_seconds",
			Help:    "Duration of detail chunk requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"outcome"}),
		RecordsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcscope_search_records",
			Help:    "Indicator records per successful search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1 .. ~8192
		}),
		GroupsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcscope_search_groups",
			Help:    "Summary groups per successful search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1 .. ~8192
		}),
		HistoryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcscope_history_errors_total",
			Help: "Total history store failures by operation.",
		}, []string{"op"}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcscope_notifications_total",
			Help: "Total hit notifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.SearchesTotal,
		m.SearchDuration,
		m.ResolveDuration,
		m.ResolveErrors,
		m.ChunksTotal,
		m.ChunkDuration,
		m.RecordsPerRun,
		m.GroupsPerRun,
		m.HistoryErrors,
		m.NotifyTotal,
	)

	return m
}

// Hooks returns PipelineHooks that record the corresponding metrics.
func (m *Metrics) Hooks() PipelineHooks {
	return PipelineHooks{
		OnResolve: func(duration float64, _ int, err error) {
			m.ResolveDuration.Observe(duration)
			if err != nil {
				m.ResolveErrors.Inc()
			}
		},
		OnChunk: func(_ int, duration float64, outcome ChunkOutcome) {
			m.ChunksTotal.WithLabelValues(string(outcome)).Inc()
			if outcome != ChunkDropped {
				m.ChunkDuration.WithLabelValues(string(outcome)).Observe(duration)
			}
		},
		OnComplete: func(snap *Snapshot) {
			m.SearchesTotal.WithLabelValues(string(snap.Outcome)).Inc()
			m.SearchDuration.WithLabelValues(string(snap.Outcome)).Observe(snap.Duration)
			if snap.Outcome == OutcomeSuccess {
				m.RecordsPerRun.Observe(float64(snap.TotalRecords))
				m.GroupsPerRun.Observe(float64(len(snap.Groups)))
			}
		},
	}
}
