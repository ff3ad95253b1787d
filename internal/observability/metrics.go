package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "bookings_created_total", Help: "Bookings created"})
	DriverAssignments = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "driver_assignments_total", Help: "Bookings assigned to a driver"})
	OffersMade        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "offers_made_total", Help: "Driver counter-offers recorded"})
	OffersDeclined    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "offers_declined_total", Help: "Counter-offers declined by passengers"})
	BookingsCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "bookings_completed_total", Help: "Bookings completed"})
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "bookings_cancelled_total", Help: "Bookings cancelled"})
	BookingsExpired   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "bookings_expired_total", Help: "Bookings expired by the reaper or on read"})
	StaleResponses    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "stale_responses_total", Help: "Driver responses that lost the assignment race"})

	DispatchFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "specialtrip",
		Name:      "dispatch_fanout_drivers",
		Help:      "Drivers notified per booking broadcast",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "specialtrip", Name: "notification_failures_total", Help: "Push notification delivery failures"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "specialtrip", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "specialtrip",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
