package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesHandled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_handled_total",
		Help: "Total number of distinct messages handled by the consumer",
	})

	MessagesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_duplicate_total",
		Help: "Total number of redelivered messages skipped by offset dedup",
	})

	AckFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_ack_failures_total",
		Help: "Total number of failed message acknowledgments",
	})

	MessagesPerSec = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "consumer_messages_per_second",
		Help: "Throughput over the current reporting window",
	})

	AssignedQueues = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "consumer_assigned_queues",
		Help: "Number of queues currently assigned to this consumer",
	})

	RebalanceWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "consumer_rebalance_wait_seconds",
		Help:    "Time spent waiting for the expected queue assignment",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	CommitFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_commit_failures_total",
		Help: "Total number of failed offset commit attempts",
	})
)
