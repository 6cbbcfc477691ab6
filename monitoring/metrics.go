package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"senha-system/models"
)

var (
	waitingTickets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "senha_waiting_tickets",
			Help: "Current number of waiting tickets per category",
		},
		[]string{"category"},
	)

	counterStates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "senha_counters",
			Help: "Current number of counters per state",
		},
		[]string{"state"},
	)

	callOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "senha_call_operations_total",
			Help: "Total ticket operations by outcome",
		},
		[]string{"operation", "status"},
	)

	announcements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "senha_announcements_total",
			Help: "Announcement attempts by outcome (played, suppressed, failed)",
		},
		[]string{"outcome"},
	)

	waitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "senha_wait_duration_seconds",
			Help:    "Time tickets spent waiting before being called",
			Buckets: prometheus.ExponentialBuckets(15, 2, 10),
		},
		[]string{"category"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run refreshes the queue depth gauges until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectQueueMetrics(ctx)
			m.collectCounterMetrics(ctx)
		}
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	for _, category := range []string{models.CategoryPreferential, models.CategoryStandard} {
		length, err := m.redis.LLen(ctx, "senha:queue:"+category).Result()
		if err != nil {
			continue
		}
		waitingTickets.WithLabelValues(category).Set(float64(length))
	}
}

func (m *Monitor) collectCounterMetrics(ctx context.Context) {
	ids, err := m.redis.SMembers(ctx, "senha:counters").Result()
	if err != nil {
		return
	}
	counts := map[string]int{models.CounterFree: 0, models.CounterBusy: 0}
	for _, id := range ids {
		state, err := m.redis.HGet(ctx, "senha:counter:"+id, "state").Result()
		if err != nil {
			continue
		}
		counts[state]++
	}
	for state, n := range counts {
		counterStates.WithLabelValues(state).Set(float64(n))
	}
}

// TrackOperation counts a dispatcher/ledger operation outcome.
func (m *Monitor) TrackOperation(operation, status string) {
	callOperations.WithLabelValues(operation, status).Inc()
}

// TrackAnnouncement counts a dedup/announce outcome.
func (m *Monitor) TrackAnnouncement(outcome string) {
	announcements.WithLabelValues(outcome).Inc()
}

// ObserveWait records how long a ticket waited before its call.
func (m *Monitor) ObserveWait(category string, waited time.Duration) {
	waitDuration.WithLabelValues(category).Observe(waited.Seconds())
}
