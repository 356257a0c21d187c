package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	allocationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_allocation_operations_total",
			Help: "Ticket allocation attempts by outcome",
		},
		[]string{"outcome"}, // allocated, insufficient, not_found, error
	)

	releaseOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_release_operations_total",
			Help: "Ticket release operations by outcome",
		},
		[]string{"outcome"},
	)

	paymentOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Ledger payment operations by type and outcome",
		},
		[]string{"operation", "outcome"}, // process/refund/add_funds/withdraw
	)

	balanceOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balance_operation_duration_seconds",
			Help:    "Duration of balance store operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	eventBusDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticket_event_bus_depth",
			Help: "Queued, undelivered ticket events",
		},
	)

	eventBusDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_event_bus_dropped_total",
			Help: "Ticket events dropped because the bus was full",
		},
	)

	pendingCredits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_balance_credits_total",
			Help: "Journaled balance credits awaiting reconciliation",
		},
	)
)

type Monitor struct {
	redis *redis.Client
	depth func() int
}

// NewMonitor starts the background collection loop. depth reports the
// event bus backlog; redisClient may be nil when no journal is configured.
func NewMonitor(redisClient *redis.Client, depth func() int) *Monitor {
	monitor := &Monitor{redis: redisClient, depth: depth}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if m.depth != nil {
			eventBusDepth.Set(float64(m.depth()))
		}
		if m.redis != nil {
			m.collectReconcileMetrics(context.Background())
		}
	}
}

func (m *Monitor) collectReconcileMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "reconcile:credit:*").Result()
	if err != nil {
		return
	}
	pendingCredits.Set(float64(len(keys)))
}

// TrackAllocation records an allocate call outcome.
func TrackAllocation(outcome string) {
	allocationOps.WithLabelValues(outcome).Inc()
}

// TrackRelease records a release call outcome.
func TrackRelease(outcome string) {
	releaseOps.WithLabelValues(outcome).Inc()
}

// TrackPayment records a ledger operation outcome.
func TrackPayment(operation, outcome string) {
	paymentOps.WithLabelValues(operation, outcome).Inc()
}

// TrackBalanceOp records the duration of a balance store operation.
func TrackBalanceOp(operation string, d time.Duration) {
	balanceOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// TrackEventDropped counts a discarded bus event.
func TrackEventDropped() {
	eventBusDropped.Inc()
}
