package mailer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mailMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_messages_total",
			Help: "Emails handled by the mail queue, by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)

	mailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_send_duration_seconds",
			Help:    "Time spent delivering a single email.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"transport"},
	)

	mailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mail_queue_depth",
			Help: "Emails waiting in the queue.",
		},
	)
)
