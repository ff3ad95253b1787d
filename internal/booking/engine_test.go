package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/booking/bookingtest"
	"github.com/chachabrian/specialtrip-backend/internal/events"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	engine    *booking.Engine
	ledger    *booking.RatingLedger
	store     *bookingtest.MemStore
	clock     *bookingtest.FakeClock
	party     *bookingtest.RecordingPartyNotifier
	pushes    *bookingtest.RecordingNotifier
	sink      *bookingtest.RecordingSink
	passenger *models.User
	driver    *models.User
	driver2   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := bookingtest.NewMemStore()
	clock := bookingtest.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	party := &bookingtest.RecordingPartyNotifier{}
	pushes := &bookingtest.RecordingNotifier{}
	sink := &bookingtest.RecordingSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	passenger := store.AddUser(models.User{Username: "amina", UserType: models.UserTypePassenger})
	driver := store.AddUser(models.User{Username: "kofi", UserType: models.UserTypeDriver, FCMToken: "tok-kofi"})
	driver2 := store.AddUser(models.User{Username: "musa", UserType: models.UserTypeDriver, FCMToken: "tok-musa"})

	dispatcher := booking.NewDispatcher(store, pushes, party, logger)
	engine := booking.NewEngine(store, store, dispatcher, party, sink, clock, logger, booking.DefaultOptions())
	ledger := booking.NewRatingLedger(store, sink, clock, logger)

	return &testEnv{
		engine:    engine,
		ledger:    ledger,
		store:     store,
		clock:     clock,
		party:     party,
		pushes:    pushes,
		sink:      sink,
		passenger: passenger,
		driver:    driver,
		driver2:   driver2,
	}
}

func (env *testEnv) createBooking(t *testing.T, fare float64) *models.Booking {
	t.Helper()
	b, err := env.engine.Create(context.Background(), booking.CreateParams{
		UserID:        env.passenger.ID,
		Pickup:        booking.Location{Lat: 0, Lng: 0, Address: "Market Square"},
		Destination:   booking.Location{Lat: 0.05, Lng: 0, Address: "Airport Road"},
		PreferredFare: fare,
	})
	require.NoError(t, err)
	return b
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)

	b := env.createBooking(t, 150)

	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, env.passenger.ID, b.UserID)
	assert.Nil(t, b.DriverID)
	assert.Equal(t, env.clock.Now().Add(30*time.Minute), b.ExpiresAt)

	// Both token-holding drivers were reached, and the attempt was recorded.
	assert.ElementsMatch(t, models.IDList{env.driver.ID, env.driver2.ID}, b.NotifiedDrivers)
	assert.Len(t, env.pushes.Pushes(), 2)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var vErr *booking.ValidationError

	_, err := env.engine.Create(ctx, booking.CreateParams{
		UserID:        env.passenger.ID,
		Pickup:        booking.Location{Lat: 95, Lng: 0},
		Destination:   booking.Location{Lat: 0, Lng: 0},
		PreferredFare: 100,
	})
	require.ErrorAs(t, err, &vErr)

	_, err = env.engine.Create(ctx, booking.CreateParams{
		UserID:        env.passenger.ID,
		Pickup:        booking.Location{Lat: 0, Lng: 0},
		Destination:   booking.Location{Lat: 0.05, Lng: 0},
		PreferredFare: -1,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "preferredFare", vErr.Field)
}

func TestCreateRejectsSecondActiveBooking(t *testing.T) {
	env := newTestEnv(t)

	env.createBooking(t, 150)

	_, err := env.engine.Create(context.Background(), booking.CreateParams{
		UserID:        env.passenger.ID,
		Pickup:        booking.Location{Lat: 0, Lng: 0},
		Destination:   booking.Location{Lat: 0.05, Lng: 0},
		PreferredFare: 200,
	})
	assert.ErrorIs(t, err, booking.ErrActiveBookingExists)
}

func TestDriverAcceptAtPreferredFare(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	updated, err := env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
		BookingID: b.ID,
		DriverID:  env.driver.ID,
		Accept:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusAccepted, updated.Status)
	require.NotNil(t, updated.DriverID)
	assert.Equal(t, env.driver.ID, *updated.DriverID)
	require.NotNil(t, updated.AgreedFare)
	assert.Equal(t, 150.0, *updated.AgreedFare)
	require.NotNil(t, updated.AcceptedAt)
}

func TestDriverRespondRequiresDriverRole(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	_, err := env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
		BookingID: b.ID,
		DriverID:  env.passenger.ID,
		Accept:    true,
	})
	assert.ErrorIs(t, err, booking.ErrNotAllowed)
}

func TestDriverRespondNeitherAcceptNorOffer(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	var vErr *booking.ValidationError
	_, err := env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
		BookingID: b.ID,
		DriverID:  env.driver.ID,
		Accept:    false,
	})
	require.ErrorAs(t, err, &vErr)
}

func TestCounterOfferThenDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t, 150)
	originalExpiry := b.ExpiresAt

	offer := 180.0
	updated, err := env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID:   b.ID,
		DriverID:    env.driver.ID,
		OfferAmount: &offer,
		Message:     "traffic on the bridge",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusOfferMade, updated.Status)
	require.NotNil(t, updated.OfferAmount)
	assert.Equal(t, 180.0, *updated.OfferAmount)
	assert.Equal(t, "traffic on the bridge", updated.OfferMessage)

	declined, err := env.engine.RespondToOffer(ctx, b.ID, env.passenger.ID, false)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, declined.Status)
	assert.Nil(t, declined.DriverID)
	assert.Nil(t, declined.OfferAmount)
	assert.Nil(t, declined.AgreedFare)
	assert.Equal(t, originalExpiry.Add(5*time.Minute), declined.ExpiresAt)

	// The declined driver is told, even though the record no longer names him.
	events := env.party.EventsFor(env.driver.ID)
	var declineSeen bool
	for _, e := range events {
		if e.Event == "offer_declined" {
			declineSeen = true
		}
	}
	assert.True(t, declineSeen, "declined driver should be notified")
}

func TestAcceptCounterOfferSetsAgreedFare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t, 150)

	offer := 180.0
	_, err := env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID:   b.ID,
		DriverID:    env.driver.ID,
		OfferAmount: &offer,
	})
	require.NoError(t, err)

	accepted, err := env.engine.RespondToOffer(ctx, b.ID, env.passenger.ID, true)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AgreedFare)
	assert.Equal(t, 180.0, *accepted.AgreedFare)
	require.NotNil(t, accepted.DriverID)
	assert.Equal(t, env.driver.ID, *accepted.DriverID)
}

func TestRespondToOfferOnlyByOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t, 150)

	offer := 180.0
	_, err := env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID:   b.ID,
		DriverID:    env.driver.ID,
		OfferAmount: &offer,
	})
	require.NoError(t, err)

	_, err = env.engine.RespondToOffer(ctx, b.ID, env.driver2.ID, true)
	assert.ErrorIs(t, err, booking.ErrNotAllowed)
}

func TestDriverRespondExpiredWindow(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	env.clock.Advance(31 * time.Minute)

	_, err := env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
		BookingID: b.ID,
		DriverID:  env.driver.ID,
		Accept:    true,
	})
	assert.ErrorIs(t, err, booking.ErrExpired)

	// Lazy reap moved the record out of the pool.
	assert.Equal(t, models.BookingStatusExpired, env.store.Booking(b.ID).Status)

	// The published event carries the post-transition status.
	published := env.sink.OfType(events.TypeBookingExpired)
	require.Len(t, published, 1)
	assert.Equal(t, models.BookingStatusExpired, published[0].Status)
	assert.Equal(t, b.ID, published[0].BookingID)
}

func TestConcurrentDriverRespondExactlyOneWinner(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, driverID := range []uint{env.driver.ID, env.driver2.ID} {
		go func(i int, driverID uint) {
			defer wg.Done()
			_, errs[i] = env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
				BookingID: b.ID,
				DriverID:  driverID,
				Accept:    true,
			})
		}(i, driverID)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, booking.ErrStaleState)
		}
	}
	require.Equal(t, 1, winners, "exactly one driver must win the race")

	final := env.store.Booking(b.ID)
	assert.Equal(t, models.BookingStatusAccepted, final.Status)
	require.NotNil(t, final.DriverID)
	if errs[0] == nil {
		assert.Equal(t, env.driver.ID, *final.DriverID)
	} else {
		assert.Equal(t, env.driver2.ID, *final.DriverID)
	}
}

func TestSecondDriverAfterAssignmentGetsStaleState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.createBooking(t, 150)

	_, err := env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID: b.ID, DriverID: env.driver.ID, Accept: true,
	})
	require.NoError(t, err)

	_, err = env.engine.DriverRespond(ctx, booking.DriverRespondParams{
		BookingID: b.ID, DriverID: env.driver2.ID, Accept: true,
	})
	assert.ErrorIs(t, err, booking.ErrStaleState)
}

func acceptedBooking(t *testing.T, env *testEnv, fare float64) *models.Booking {
	t.Helper()
	b := env.createBooking(t, fare)
	accepted, err := env.engine.DriverRespond(context.Background(), booking.DriverRespondParams{
		BookingID: b.ID, DriverID: env.driver.ID, Accept: true,
	})
	require.NoError(t, err)
	return accepted
}

func TestStartTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := acceptedBooking(t, env, 150)

	_, err := env.engine.Start(ctx, b.ID, env.driver2.ID)
	assert.ErrorIs(t, err, booking.ErrNotAllowed)

	started, err := env.engine.Start(ctx, b.ID, env.driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusInProgress, started.Status)

	_, err = env.engine.Start(ctx, b.ID, env.driver.ID)
	assert.ErrorIs(t, err, booking.ErrStaleState)
}

func TestCompleteTooFarFromDestination(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	// Destination is at (0.05, 0); this fix is roughly 1.1km north of it.
	_, err := env.engine.Complete(context.Background(), booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.passenger.ID,
		Location:  &utils.Point{Lat: 0.06, Lng: 0},
	})

	var gErr *booking.GeofenceError
	require.ErrorAs(t, err, &gErr)
	assert.InDelta(t, 1112, gErr.DistanceMeters, 10)
	assert.Equal(t, 300.0, gErr.RadiusMeters)

	// Nothing moved.
	assert.Equal(t, models.BookingStatusAccepted, env.store.Booking(b.ID).Status)
	assert.Equal(t, 0, env.store.User(env.passenger.ID).TripsCompleted)
}

func TestCompleteWithinGeofence(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	// About 220m from the destination.
	completed, err := env.engine.Complete(context.Background(), booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.passenger.ID,
		Location:  &utils.Point{Lat: 0.052, Lng: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCompleted, completed.Status)
	assert.True(t, completed.UserConfirmedCompletion)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.CompletionLat)
	assert.Equal(t, 1, env.store.User(env.passenger.ID).TripsCompleted)
}

func TestCompleteWithoutLocationSkipsGeofence(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	completed, err := env.engine.Complete(context.Background(), booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.passenger.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, completed.Status)
}

func TestDriverCompleteRecordsConfirmationOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := acceptedBooking(t, env, 150)

	updated, err := env.engine.Complete(ctx, booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.driver.ID,
		Location:  &utils.Point{Lat: 0.0505, Lng: 0},
	})
	require.NoError(t, err)

	// Driver confirmation alone doesn't finish the trip.
	assert.Equal(t, models.BookingStatusAccepted, updated.Status)
	assert.True(t, updated.DriverConfirmedCompletion)
	assert.False(t, updated.UserConfirmedCompletion)
	assert.Equal(t, 0, env.store.User(env.passenger.ID).TripsCompleted)

	completed, err := env.engine.Complete(ctx, booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.passenger.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, completed.Status)
	assert.Equal(t, 1, env.store.User(env.passenger.ID).TripsCompleted)
}

func TestCompleteByStrangerForbidden(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	_, err := env.engine.Complete(context.Background(), booking.CompleteParams{
		BookingID: b.ID,
		CallerID:  env.driver2.ID,
	})
	assert.ErrorIs(t, err, booking.ErrNotAllowed)
}

func TestCancelFromEveryNonTerminalState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := env.createBooking(t, 150)
	cancelled, err := env.engine.Cancel(ctx, booking.CancelParams{
		BookingID: b.ID, CallerID: env.passenger.ID, Reason: "changed plans",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, models.CancelledByUser, cancelled.CancelledBy)
	assert.Equal(t, "changed plans", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	b2 := acceptedBooking(t, env, 150)
	cancelled2, err := env.engine.Cancel(ctx, booking.CancelParams{
		BookingID: b2.ID, CallerID: env.driver.ID, Reason: "vehicle trouble",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CancelledByDriver, cancelled2.CancelledBy)
}

func TestCancelTerminalBookingFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := acceptedBooking(t, env, 150)

	_, err := env.engine.Complete(ctx, booking.CompleteParams{BookingID: b.ID, CallerID: env.passenger.ID})
	require.NoError(t, err)

	_, err = env.engine.Cancel(ctx, booking.CancelParams{BookingID: b.ID, CallerID: env.passenger.ID})
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	_, err := env.engine.Cancel(context.Background(), booking.CancelParams{
		BookingID: b.ID, CallerID: env.driver2.ID,
	})
	assert.ErrorIs(t, err, booking.ErrNotAllowed)
}

func TestAdminCancelAttributedToSystem(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBooking(t, 150)

	cancelled, err := env.engine.Cancel(context.Background(), booking.CancelParams{
		BookingID: b.ID, CallerID: 999, Admin: true, Reason: "fraud review",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CancelledBySystem, cancelled.CancelledBy)
}

func completedBooking(t *testing.T, env *testEnv, fare float64) *models.Booking {
	t.Helper()
	b := acceptedBooking(t, env, fare)
	completed, err := env.engine.Complete(context.Background(), booking.CompleteParams{
		BookingID: b.ID, CallerID: env.passenger.ID,
	})
	require.NoError(t, err)
	return completed
}

func TestRatingIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := completedBooking(t, env, 150)

	review, err := env.ledger.Rate(ctx, booking.RateParams{
		BookingID: b.ID, UserID: env.passenger.ID, Rating: 4, Comment: "smooth ride",
	})
	require.NoError(t, err)
	assert.Equal(t, env.driver.ID, review.DriverID)

	_, err = env.ledger.Rate(ctx, booking.RateParams{
		BookingID: b.ID, UserID: env.passenger.ID, Rating: 5,
	})
	assert.ErrorIs(t, err, booking.ErrRatingAlreadySet)

	// Exactly one contribution landed on the aggregate.
	driver := env.store.User(env.driver.ID)
	assert.Equal(t, 4.0, driver.Rating)
	assert.Equal(t, 1, driver.NumReviews)
	assert.Len(t, env.store.Reviews(), 1)
}

func TestRatingRunningMean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b1 := completedBooking(t, env, 150)
	_, err := env.ledger.Rate(ctx, booking.RateParams{BookingID: b1.ID, UserID: env.passenger.ID, Rating: 4})
	require.NoError(t, err)

	b2 := completedBooking(t, env, 200)
	_, err = env.ledger.Rate(ctx, booking.RateParams{BookingID: b2.ID, UserID: env.passenger.ID, Rating: 5})
	require.NoError(t, err)

	driver := env.store.User(env.driver.ID)
	assert.InDelta(t, 4.5, driver.Rating, 1e-9)
	assert.Equal(t, 2, driver.NumReviews)
}

func TestRatingValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := completedBooking(t, env, 150)

	var vErr *booking.ValidationError
	_, err := env.ledger.Rate(ctx, booking.RateParams{BookingID: b.ID, UserID: env.passenger.ID, Rating: 0})
	require.ErrorAs(t, err, &vErr)
	_, err = env.ledger.Rate(ctx, booking.RateParams{BookingID: b.ID, UserID: env.passenger.ID, Rating: 6})
	require.ErrorAs(t, err, &vErr)

	_, err = env.ledger.Rate(ctx, booking.RateParams{BookingID: b.ID, UserID: env.driver.ID, Rating: 3})
	assert.ErrorIs(t, err, booking.ErrNotAllowed)
}

func TestRatingRequiresCompletedBooking(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	var vErr *booking.ValidationError
	_, err := env.ledger.Rate(context.Background(), booking.RateParams{
		BookingID: b.ID, UserID: env.passenger.ID, Rating: 5,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)
}

func TestNearbyPendingFiltersByDistance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createBooking(t, 150) // pickup at (0, 0)

	farAway := env.store.AddUser(models.User{Username: "femi", UserType: models.UserTypePassenger})
	_, err := env.engine.Create(ctx, booking.CreateParams{
		UserID:        farAway.ID,
		Pickup:        booking.Location{Lat: 1, Lng: 1},
		Destination:   booking.Location{Lat: 1.05, Lng: 1},
		PreferredFare: 80,
	})
	require.NoError(t, err)

	nearby, err := env.engine.NearbyPending(ctx, 0.01, 0.01, 10000)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, env.passenger.ID, nearby[0].UserID)
}

func TestNearbyPendingExcludesStale(t *testing.T) {
	env := newTestEnv(t)
	env.createBooking(t, 150)

	env.clock.Advance(31 * time.Minute)

	nearby, err := env.engine.NearbyPending(context.Background(), 0.01, 0.01, 10000)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestActiveBookingLookup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active, err := env.engine.ActiveBooking(ctx, env.passenger.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	b := env.createBooking(t, 150)
	active, err = env.engine.ActiveBooking(ctx, env.passenger.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, b.ID, active.ID)
}

func TestCancelCompleteRaceHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	b := acceptedBooking(t, env, 150)

	var wg sync.WaitGroup
	var completeErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, completeErr = env.engine.Complete(context.Background(), booking.CompleteParams{
			BookingID: b.ID, CallerID: env.passenger.ID,
		})
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = env.engine.Cancel(context.Background(), booking.CancelParams{
			BookingID: b.ID, CallerID: env.driver.ID, Reason: "no-show",
		})
	}()
	wg.Wait()

	final := env.store.Booking(b.ID)
	if completeErr == nil && cancelErr == nil {
		t.Fatalf("both complete and cancel succeeded; final status %s", final.Status)
	}
	if completeErr != nil && cancelErr != nil {
		t.Fatalf("both complete and cancel failed: %v / %v", completeErr, cancelErr)
	}
	if completeErr == nil {
		assert.Equal(t, models.BookingStatusCompleted, final.Status)
		assert.True(t, errors.Is(cancelErr, booking.ErrAlreadyTerminal))
	} else {
		assert.Equal(t, models.BookingStatusCancelled, final.Status)
		assert.True(t, errors.Is(completeErr, booking.ErrAlreadyTerminal))
	}
}
