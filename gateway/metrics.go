package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stampcard",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Backend gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stampcard",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Backend gateway call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func observe(op string, start time.Time, err error) {
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	var be *BusinessError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "unauthorized"
	case errors.As(err, &be):
		return "business_error"
	default:
		return "transport_error"
	}
}
