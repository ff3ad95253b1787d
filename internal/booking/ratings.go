package booking

import (
	"context"
	"log/slog"

	"github.com/chachabrian/specialtrip-backend/internal/events"
	"github.com/chachabrian/specialtrip-backend/internal/models"
)

// RatingLedger records one rating per completed booking and keeps the
// driver's running-mean aggregate in step.
type RatingLedger struct {
	store  Store
	sink   events.Sink
	clock  Clock
	logger *slog.Logger
}

func NewRatingLedger(store Store, sink events.Sink, clock Clock, logger *slog.Logger) *RatingLedger {
	if sink == nil {
		sink = events.NopSink{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingLedger{store: store, sink: sink, clock: clock, logger: logger}
}

// RateParams are the typed inputs of Rate.
type RateParams struct {
	BookingID uint
	UserID    uint
	Rating    float64
	Comment   string
}

// Rate writes the one-shot rating. Only the booking's passenger may rate,
// only a completed booking qualifies, and the second attempt loses with
// ErrRatingAlreadySet.
func (l *RatingLedger) Rate(ctx context.Context, p RateParams) (*models.Review, error) {
	if p.Rating < 1 || p.Rating > 5 {
		return nil, &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}

	b, err := l.store.ByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if b.UserID != p.UserID {
		return nil, ErrNotAllowed
	}
	if b.Status != models.BookingStatusCompleted {
		return nil, &ValidationError{Field: "status", Reason: "only completed bookings can be rated"}
	}
	if b.DriverID == nil {
		return nil, &ValidationError{Field: "driver", Reason: "booking has no assigned driver"}
	}

	review := &models.Review{
		BookingID: b.ID,
		UserID:    b.UserID,
		DriverID:  *b.DriverID,
		Rating:    p.Rating,
		Comment:   p.Comment,
	}
	if err := l.store.RecordRating(ctx, review); err != nil {
		return nil, err
	}

	ev := events.Event{
		Type:      events.TypeBookingRated,
		BookingID: b.ID,
		UserID:    b.UserID,
		DriverID:  b.DriverID,
		Status:    b.Status,
		At:        l.clock.Now(),
	}
	if err := l.sink.Publish(ctx, ev); err != nil {
		l.logger.Warn("failed to publish rating event", "bookingId", b.ID, "error", err)
	}
	return review, nil
}
