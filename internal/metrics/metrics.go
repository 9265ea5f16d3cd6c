package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission metrics
var (
	// SubmissionsTotal counts incoming images by outcome
	// (await_second, limit_reached, success, no_face, failed).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceswap_submissions_total",
			Help: "Incoming images by outcome",
		},
		[]string{"outcome"},
	)

	// SwapDuration tracks detect+composite+encode latency in seconds.
	SwapDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faceswap_swap_duration_seconds",
			Help:    "Face swap duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// PendingSessions is the number of users waiting to send a second photo.
	PendingSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faceswap_pending_sessions",
			Help: "Users with one image awaiting a pair",
		},
	)
)

// Transport metrics
var (
	// BroadcastMessagesTotal counts broadcast deliveries by status (sent, failed).
	BroadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceswap_broadcast_messages_total",
			Help: "Broadcast messages by delivery status",
		},
		[]string{"status"},
	)
)

// Transport input metrics
var (
	// RejectedImagesTotal counts uploads dropped before reaching the swap pipeline
	// (not_image, too_large, download).
	RejectedImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faceswap_rejected_images_total",
			Help: "Uploads rejected before quota consumption",
		},
		[]string{"reason"},
	)
)
