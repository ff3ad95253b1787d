package booking_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReaperEnv(t *testing.T) (*testEnv, *booking.Reaper) {
	t.Helper()
	env := newTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reaper := booking.NewReaper(env.store, env.party, nil, env.clock, logger, time.Second)
	return env, reaper
}

func TestSweepExpiresStalePending(t *testing.T) {
	env, reaper := newReaperEnv(t)
	ctx := context.Background()

	stale := env.createBooking(t, 150)

	fresh := env.store.AddUser(models.User{Username: "lois", UserType: models.UserTypePassenger})
	env.clock.Advance(20 * time.Minute)
	b2, err := env.engine.Create(ctx, booking.CreateParams{
		UserID:        fresh.ID,
		Pickup:        booking.Location{Lat: 0, Lng: 0},
		Destination:   booking.Location{Lat: 0.05, Lng: 0},
		PreferredFare: 90,
	})
	require.NoError(t, err)

	// First booking is 31 minutes old now; the second only 11.
	env.clock.Advance(11 * time.Minute)

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.BookingStatusExpired, env.store.Booking(stale.ID).Status)
	assert.Equal(t, models.BookingStatusPending, env.store.Booking(b2.ID).Status)

	// Passenger heard about it.
	var notified bool
	for _, e := range env.party.EventsFor(env.passenger.ID) {
		if e.Event == "booking_expired" {
			notified = true
		}
	}
	assert.True(t, notified)
}

func TestSweepIsIdempotent(t *testing.T) {
	env, reaper := newReaperEnv(t)
	ctx := context.Background()

	env.createBooking(t, 150)
	env.clock.Advance(31 * time.Minute)

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweepSparesDeclineExtendedBooking(t *testing.T) {
	env, reaper := newReaperEnv(t)
	ctx := context.Background()

	b := env.createBooking(t, 150)

	// Counter-offer near the deadline, then a decline pushes it out 5 minutes.
	env.clock.Advance(29 * time.Minute)
	offer := 180.0
	_, err := env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID:   b.ID,
		DriverID:    env.driver.ID,
		OfferAmount: &offer,
	})
	require.NoError(t, err)
	_, err = env.engine.RespondToOffer(ctx, b.ID, env.passenger.ID, false)
	require.NoError(t, err)

	// Past the original deadline but inside the extension.
	env.clock.Advance(3 * time.Minute)
	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, models.BookingStatusPending, env.store.Booking(b.ID).Status)

	// Past the extension too.
	env.clock.Advance(4 * time.Minute)
	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.BookingStatusExpired, env.store.Booking(b.ID).Status)
}

func TestSweepLeavesAssignedBookingsAlone(t *testing.T) {
	env, reaper := newReaperEnv(t)
	ctx := context.Background()

	b := acceptedBooking(t, env, 150)
	env.clock.Advance(31 * time.Minute)

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, models.BookingStatusAccepted, env.store.Booking(b.ID).Status)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	env, _ := newReaperEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reaper := booking.NewReaper(env.store, env.party, nil, env.clock, logger, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancellation")
	}
}
