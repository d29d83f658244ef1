package application

import (
	"time"

	"github.com/alkimyk/cmr/internal/console/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Resultados posibles de un intento contra una ruta candidata.
const (
	outcomeOK        = "ok"
	outcomeTransport = "transport_error"
	outcomeStatus    = "bad_status"
	outcomeMalformed = "malformed"
	outcomeNotFound  = "not_found"
	outcomeRejected  = "rejected"
)

// Metrics agrupa los contadores del resolver. Un *Metrics nil no registra nada.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_candidate_attempts_total",
				Help: "Requests issued against candidate backend paths.",
			},
			[]string{"kind", "op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_resolver_duration_seconds",
				Help:    "Time spent resolving an operation across all candidates.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "op"},
		),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) attempt(kind domain.Kind, op domain.Op, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(kind), string(op), outcome).Inc()
}

func (m *Metrics) observe(kind domain.Kind, op domain.Op, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(kind), string(op)).Observe(time.Since(start).Seconds())
}
