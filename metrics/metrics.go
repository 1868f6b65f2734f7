package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed The total number of processed messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)

var (
	// RegistrationsTotal counts registration attempts by outcome
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "registrations",
			Name:      "total",
			Help:      "The total number of registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CheckInsTotal counts scans by result
	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "check_ins",
			Name:      "total",
			Help:      "The total number of ticket scans by result",
		},
		[]string{"result"},
	)

	// PaymentVerificationsTotal counts verification decisions by method and result
	PaymentVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "verifications_total",
			Help:      "The total number of payment verification decisions",
		},
		[]string{"method", "result"},
	)

	MatcherRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statement_matcher",
			Name:      "request_duration_seconds",
			Help:      "Duration of statement matcher calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)
