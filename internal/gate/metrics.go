package gate

import "github.com/prometheus/client_golang/prometheus"

var (
	emitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingestd",
			Subsystem: "gate",
			Name:      "emits_total",
			Help:      "Total number of Emit calls by result reason",
		},
		[]string{"reason"},
	)

	emitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ingestd",
			Subsystem: "gate",
			Name:      "emit_wait_seconds",
			Help:      "Time producers spent blocked on an armed gate",
			Buckets:   prometheus.DefBuckets,
		},
	)

	protocolViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingestd",
			Subsystem: "gate",
			Name:      "protocol_violations_total",
			Help:      "Resolve calls rejected as protocol violations",
		},
		[]string{"kind"},
	)

	listenerPresent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ingestd",
			Subsystem: "gate",
			Name:      "listener_present",
			Help:      "1 when a consumer is subscribed",
		},
	)
)

func init() {
	prometheus.MustRegister(emitsTotal, emitWaitSeconds, protocolViolationsTotal, listenerPresent)
}

func violationKind(err error) string {
	switch err {
	case ErrNotArmed:
		return "not_armed"
	case ErrAlreadyResolved:
		return "already_resolved"
	case ErrStaleCycle:
		return "stale_cycle"
	default:
		return "other"
	}
}
