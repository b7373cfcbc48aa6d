package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Total booking operations by outcome",
		},
		[]string{"operation", "status"},
	)

	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions",
		},
		[]string{"from", "to"},
	)

	paymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Payment events applied per resulting status",
		},
		[]string{"status", "outcome"},
	)

	packageCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "package_capacity_total",
			Help: "Configured capacity per package",
		},
		[]string{"package_id"},
	)

	packageBooked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "package_booked_total",
			Help: "Currently reserved travelers per package",
		},
		[]string{"package_id"},
	)
)

func TrackBookingOperation(operation, status string) {
	bookingOperations.WithLabelValues(operation, status).Inc()
}

func TrackBookingTransition(from, to string) {
	bookingTransitions.WithLabelValues(from, to).Inc()
}

func TrackPaymentEvent(status, outcome string) {
	paymentEvents.WithLabelValues(status, outcome).Inc()
}

// Monitor periodically exports the Redis capacity ledger as gauges.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectLedgerMetrics(context.Background())
	}
}

func (m *Monitor) collectLedgerMetrics(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "package:capacity:*").Result()
	for _, key := range keys {
		packageID := key[len("package:capacity:"):]
		fields, err := m.redis.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		if capacity, err := strconv.Atoi(fields["capacity"]); err == nil {
			packageCapacity.WithLabelValues(packageID).Set(float64(capacity))
		}
		if booked, err := strconv.Atoi(fields["booked"]); err == nil {
			packageBooked.WithLabelValues(packageID).Set(float64(booked))
		}
	}
}
