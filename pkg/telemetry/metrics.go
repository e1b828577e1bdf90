package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type callMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newCallMetrics(reg prometheus.Registerer) *callMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"source", "span", "status"}
	m := &callMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracegen",
			Name:      "calls_total",
			Help:      "Total number of traced calls.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracegen",
			Name:      "call_duration_seconds",
			Help:      "Duration of traced calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	m.calls = register(reg, m.calls)
	m.duration = register(reg, m.duration)
	return m
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *callMetrics) observe(source, span string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.calls.WithLabelValues(source, span, status).Inc()
	m.duration.WithLabelValues(source, span, status).Observe(elapsed.Seconds())
}
