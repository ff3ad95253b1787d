package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/events"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/internal/observability"
)

// Reaper periodically moves stale pending bookings to expired. Each
// transition reuses the conditional-update guard, so a booking that a
// driver grabs (or a decline extends) between the scan and the sweep
// is left alone.
type Reaper struct {
	store    Store
	notify   PartyNotifier
	sink     events.Sink
	clock    Clock
	logger   *slog.Logger
	interval time.Duration
}

func NewReaper(store Store, notify PartyNotifier, sink events.Sink, clock Clock, logger *slog.Logger, interval time.Duration) *Reaper {
	if clock == nil {
		clock = SystemClock()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{store: store, notify: notify, sink: sink, clock: clock, logger: logger, interval: interval}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("expiry sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Info("expired stale bookings", "count", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many bookings it expired.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	ids, err := r.store.StalePending(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := r.store.ExpireIfStale(ctx, id, now); err != nil {
			// Lost to a driver response or an extension; not ours to touch.
			if errors.Is(err, ErrStaleState) {
				continue
			}
			return expired, err
		}
		expired++
		observability.BookingsExpired.Inc()

		b, err := r.store.ByID(ctx, id)
		if err != nil || b == nil {
			continue
		}
		ev := events.Event{
			Type:      events.TypeBookingExpired,
			BookingID: b.ID,
			UserID:    b.UserID,
			Status:    models.BookingStatusExpired,
			At:        now,
		}
		if err := r.sink.Publish(ctx, ev); err != nil {
			r.logger.Warn("failed to publish expiry event", "bookingId", b.ID, "error", err)
		}
		if r.notify != nil {
			r.notify.NotifyUser(b.UserID, "booking_expired", map[string]interface{}{
				"bookingId": b.ID,
			})
		}
	}
	return expired, nil
}
