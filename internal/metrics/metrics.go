package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuepark"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by initial status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by their owners.",
		},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over pending bookings.",
		},
		[]string{"decision"},
	)

	slotConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_slot_conflict_total",
			Help:      "Count of booking attempts rejected because the slot was taken.",
		},
	)

	parkingEvent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parking_event_total",
			Help:      "Count of parking lifecycle events.",
		},
		[]string{"event"},
	)

	capacityRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parking_capacity_rejected_total",
			Help:      "Count of reservations rejected because the lot was full.",
		},
	)

	catalogReload = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "venue_catalog_reload_total",
			Help:      "Count of venues.yaml reloads by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by resource, action and code.",
		},
		[]string{"resource", "action", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCancelled, adminDecision, slotConflict,
			parkingEvent, capacityRejected, catalogReload, httpRequests, httpDuration,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncAdminDecision(decision string) {
	adminDecision.WithLabelValues(decision).Inc()
}

func IncSlotConflict() {
	slotConflict.Inc()
}

// IncParkingEvent counts register, reserve, enter, exit and cancel.
func IncParkingEvent(event string) {
	parkingEvent.WithLabelValues(event).Inc()
}

func IncCapacityRejected() {
	capacityRejected.Inc()
}

// IncCatalogReload counts applied, invalid and failed catalog reloads.
func IncCatalogReload(result string) {
	catalogReload.WithLabelValues(result).Inc()
}

func ObserveHTTP(resource, action, code string, seconds float64) {
	httpRequests.WithLabelValues(resource, action, code).Inc()
	httpDuration.WithLabelValues(resource).Observe(seconds)
}
