package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for session and working-set sync.
type SyncMetrics struct {
	mutationsTotal  *prometheus.CounterVec
	rollbacksTotal  *prometheus.CounterVec
	refetchTotal    *prometheus.CounterVec
	refetchLatency  prometheus.Histogram
	logoutsTotal    *prometheus.CounterVec
	workingSetGauge prometheus.Gauge
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Subsystem: "appointments",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by operation and outcome",
		}, []string{"op", "result"}),
		rollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Subsystem: "appointments",
			Name:      "rollbacks_total",
			Help:      "Optimistic mutations rolled back after a failed request",
		}, []string{"op"}),
		refetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Subsystem: "appointments",
			Name:      "refetch_total",
			Help:      "Authoritative refetches by outcome",
		}, []string{"result"}),
		refetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hsm",
			Subsystem: "appointments",
			Name:      "refetch_latency_seconds",
			Help:      "Latency of authoritative refetches",
			Buckets:   prometheus.DefBuckets,
		}),
		logoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsm",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Session teardowns by reason",
		}, []string{"reason"}),
		workingSetGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hsm",
			Subsystem: "appointments",
			Name:      "working_set_size",
			Help:      "Appointments currently held in the working set",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.mutationsTotal, m.rollbacksTotal, m.refetchTotal, m.refetchLatency, m.logoutsTotal, m.workingSetGauge)
	return m
}

func (m *SyncMetrics) ObserveMutation(op, result string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(op, result).Inc()
}

func (m *SyncMetrics) ObserveRollback(op string) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(op).Inc()
}

func (m *SyncMetrics) ObserveRefetch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.refetchTotal.WithLabelValues(result).Inc()
	m.refetchLatency.Observe(seconds)
}

func (m *SyncMetrics) ObserveLogout(reason string) {
	if m == nil {
		return
	}
	m.logoutsTotal.WithLabelValues(reason).Inc()
}

func (m *SyncMetrics) SetWorkingSetSize(n int) {
	if m == nil {
		return
	}
	m.workingSetGauge.Set(float64(n))
}
