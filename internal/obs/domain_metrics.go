package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SubmissionsTotal counts order and lot submissions by outcome.
	SubmissionsTotal *prometheus.CounterVec
	// LotMutationsTotal counts lot allocation edits by operation and outcome.
	LotMutationsTotal *prometheus.CounterVec
	// ERPCallsTotal counts collaborator calls by operation and outcome.
	ERPCallsTotal *prometheus.CounterVec
	// ERPCallLatency records collaborator call latency in milliseconds.
	ERPCallLatency *prometheus.HistogramVec
	// SessionsActive tracks open order desk sessions.
	SessionsActive prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SubmissionsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Count of order and lot submissions by outcome.",
		}, []string{"kind", "result"}))
		LotMutationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lot_mutations_total",
			Help:      "Count of lot allocation edits by operation and outcome.",
		}, []string{"op", "result"}))
		ERPCallsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erp_calls_total",
			Help:      "Count of ERP collaborator calls by operation and outcome.",
		}, []string{"op", "result"}))
		ERPCallLatency = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "erp_call_duration_ms",
			Help:      "Latency for ERP collaborator calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		}, []string{"op"}))
		SessionsActive = registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open order desk sessions.",
		}))
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveERPCall records the outcome and latency of a collaborator call. It is
// a no-op until MustRegisterDomainMetrics ran.
func ObserveERPCall(op string, started time.Time, err error) {
	if ERPCallsTotal != nil {
		ERPCallsTotal.WithLabelValues(op, result(err)).Inc()
	}
	if ERPCallLatency != nil {
		ERPCallLatency.WithLabelValues(op).Observe(float64(time.Since(started).Milliseconds()))
	}
}

// ObserveSubmission records an order or lot submission outcome.
func ObserveSubmission(kind string, err error) {
	if SubmissionsTotal != nil {
		SubmissionsTotal.WithLabelValues(kind, result(err)).Inc()
	}
}

// ObserveLotMutation records a lot allocation edit outcome.
func ObserveLotMutation(op string, err error) {
	if LotMutationsTotal != nil {
		LotMutationsTotal.WithLabelValues(op, result(err)).Inc()
	}
}

// SessionOpened and SessionClosed keep the active session gauge current.
func SessionOpened() {
	if SessionsActive != nil {
		SessionsActive.Inc()
	}
}

func SessionClosed() {
	if SessionsActive != nil {
		SessionsActive.Dec()
	}
}
