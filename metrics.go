package xtrack

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: relay
	queueEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrack",
		Subsystem: "dispatcher",
		Name:      "enqueued_total",
		Help:      "Messages accepted into a dispatcher queue",
	}, []string{"relay"})

	// Labels: relay
	queueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrack",
		Subsystem: "dispatcher",
		Name:      "dropped_total",
		Help:      "Messages discarded because the dispatcher queue was full",
	}, []string{"relay"})

	// Labels: relay
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "xtrack",
		Subsystem: "dispatcher",
		Name:      "queue_depth",
		Help:      "Messages waiting in a dispatcher queue",
	}, []string{"relay"})

	// Labels: relay, status (ok, error)
	relaySends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrack",
		Subsystem: "relay",
		Name:      "sends_total",
		Help:      "Send attempts by relay and outcome",
	}, []string{"relay", "status"})

	// Labels: relay
	relaySendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xtrack",
		Subsystem: "relay",
		Name:      "send_duration_seconds",
		Help:      "Time spent in one backend send",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"relay"})

	// Labels: relay, result (ok, error)
	relayConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrack",
		Subsystem: "relay",
		Name:      "connects_total",
		Help:      "Connection attempts and losses seen by a reconnect supervisor",
	}, []string{"relay", "result"})
)

// recordSend records the outcome and latency of one backend send.
func recordSend(relay string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	relaySends.WithLabelValues(relay, status).Inc()
	relaySendDuration.WithLabelValues(relay).Observe(d.Seconds())
}

// recordConnect records one connection attempt by a reconnect supervisor.
func recordConnect(relay string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	relayConnects.WithLabelValues(relay, result).Inc()
}
