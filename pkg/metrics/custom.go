package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinport",
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"service", "route", "reason"},
	)

	WebhookReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinport",
			Name:      "webhook_received_total",
			Help:      "Total number of inbound webhook deliveries.",
		},
		[]string{"service", "result"}, // result: accepted/persist_failed
	)

	WebhookOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinport",
			Name:      "webhook_outcome_total",
			Help:      "Terminal processing outcomes of webhook events.",
		},
		[]string{"service", "outcome"}, // outcome: success/duplicate_tx/error
	)

	ProcessQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "coinport",
			Name:      "process_queue_depth",
			Help:      "Pending jobs in the deposit processing queue.",
		},
		[]string{"service"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		RateLimitBlockTotal,
		WebhookReceivedTotal,
		WebhookOutcomeTotal,
		ProcessQueueDepth,
	)
}
