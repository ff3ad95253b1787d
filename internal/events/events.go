package events

import (
	"context"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/models"
)

// Booking lifecycle event types.
const (
	TypeBookingCreated   = "booking_created"
	TypeDriverAssigned   = "driver_assigned"
	TypeOfferMade        = "offer_made"
	TypeOfferDeclined    = "offer_declined"
	TypeTripStarted      = "trip_started"
	TypeBookingCompleted = "booking_completed"
	TypeBookingCancelled = "booking_cancelled"
	TypeBookingExpired   = "booking_expired"
	TypeBookingRated     = "booking_rated"
)

// Event is one entry on the booking lifecycle stream.
type Event struct {
	Type      string               `json:"type"`
	BookingID uint                 `json:"bookingId"`
	UserID    uint                 `json:"userId"`
	DriverID  *uint                `json:"driverId,omitempty"`
	Status    models.BookingStatus `json:"status"`
	Fare      *float64             `json:"fare,omitempty"`
	At        time.Time            `json:"at"`
}

// Sink receives lifecycle events. Publishing is best effort: the engine
// logs failures and never rolls back a transition over them.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopSink discards everything. Used when no brokers are configured.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, e Event) error { return nil }
func (NopSink) Close() error                               { return nil }
