package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "web_push_notifications"

	MetricPushSuccess = "PushSuccess"
	MetricPushFailure = "PushFailure"
)

// Sink receives delivery counters. Emit must not block: a metrics outage
// cannot hold up delivery.
type Sink interface {
	Emit(metric string, value float64)
}

// PrometheusSink exposes the push counters with the deployment environment
// as a label.
type PrometheusSink struct {
	environment string
	counters    map[string]*prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer, environment string) *PrometheusSink {
	factory := promauto.With(reg)

	return &PrometheusSink{
		environment: environment,
		counters: map[string]*prometheus.CounterVec{
			MetricPushSuccess: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "push_success_total",
				Help:      "Total number of web-push messages accepted by the push service",
			}, []string{"environment"}),
			MetricPushFailure: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "push_failure_total",
				Help:      "Total number of web-push deliveries that failed",
			}, []string{"environment"}),
		},
	}
}

func (s *PrometheusSink) Emit(metric string, value float64) {
	counter, ok := s.counters[metric]
	if !ok {
		slog.Warn("Unknown metric dropped", "metric", metric)
		return
	}
	counter.WithLabelValues(s.environment).Add(value)
}
