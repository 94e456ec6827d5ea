package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Post outcomes used as the "outcome" label.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "transport_error"
	OutcomeSkipped   = "circuit_open"
)

var (
	// PostsTotal counts result posts by outcome.
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extjob",
			Subsystem: "reporter",
			Name:      "posts_total",
			Help:      "Total number of build result posts by outcome",
		},
		[]string{"outcome"},
	)

	// ResponsesTotal counts HTTP status codes returned by the CI server.
	// The status never fails a post; this is for visibility only.
	ResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extjob",
			Subsystem: "reporter",
			Name:      "responses_total",
			Help:      "HTTP responses from the CI server by status class",
		},
		[]string{"class"},
	)

	// PostDuration tracks round-trip time of a post.
	PostDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "extjob",
			Subsystem: "reporter",
			Name:      "post_duration_seconds",
			Help:      "Duration of build result posts in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
	)

	// PayloadBytes tracks rendered document sizes.
	PayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "extjob",
			Subsystem: "reporter",
			Name:      "payload_bytes",
			Help:      "Size of rendered result documents",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~16MB
		},
	)

	// BreakerOpen is 1 while the post circuit breaker rejects requests.
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "extjob",
			Subsystem: "reporter",
			Name:      "breaker_open",
			Help:      "Whether the named circuit breaker is open",
		},
		[]string{"name"},
	)
)

// RecordPost records a finished post attempt.
func RecordPost(outcome string, durationSeconds float64, payloadBytes int) {
	PostsTotal.WithLabelValues(outcome).Inc()
	PayloadBytes.Observe(float64(payloadBytes))
	if outcome != OutcomeSkipped {
		PostDuration.Observe(durationSeconds)
	}
}

// RecordResponse records the status code of a delivered post.
func RecordResponse(statusCode int) {
	ResponsesTotal.WithLabelValues(fmt.Sprintf("%dxx", statusCode/100)).Inc()
}

// SetBreakerOpen publishes breaker state.
func SetBreakerOpen(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	BreakerOpen.WithLabelValues(name).Set(v)
}

// Push sends the default registry to a Pushgateway. A one-shot reporter
// exits before any scrape could happen, so this is how its metrics leave.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	err := push.New(gatewayURL, "extjob_reporter").
		Gatherer(prometheus.DefaultGatherer).
		Grouping("ci_job", job).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
