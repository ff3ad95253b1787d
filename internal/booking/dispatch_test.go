package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/booking/bookingtest"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBroadcastReachesTokenHoldersOnly(t *testing.T) {
	store := bookingtest.NewMemStore()
	withToken := store.AddUser(models.User{Username: "kofi", UserType: models.UserTypeDriver, FCMToken: "tok-kofi"})
	store.AddUser(models.User{Username: "musa", UserType: models.UserTypeDriver}) // no token
	store.AddUser(models.User{Username: "amina", UserType: models.UserTypePassenger, FCMToken: "tok-amina"})

	pushes := &bookingtest.RecordingNotifier{}
	party := &bookingtest.RecordingPartyNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := booking.NewDispatcher(store, pushes, party, logger)

	b := &models.Booking{UserID: 3, PickupAddr: "Market Square", PreferredFare: 150}
	b.ID = 42

	notified := d.Broadcast(context.Background(), b)

	assert.Equal(t, models.IDList{withToken.ID}, notified)
	assert.Len(t, pushes.Pushes(), 1)
	assert.Equal(t, "tok-kofi", pushes.Pushes()[0].Token)
	assert.Equal(t, "42", pushes.Pushes()[0].Data["bookingId"])
	assert.Len(t, party.EventsFor(withToken.ID), 1)
}

func TestBroadcastSurvivesPushFailures(t *testing.T) {
	store := bookingtest.NewMemStore()
	d1 := store.AddUser(models.User{Username: "kofi", UserType: models.UserTypeDriver, FCMToken: "tok-kofi"})
	d2 := store.AddUser(models.User{Username: "musa", UserType: models.UserTypeDriver, FCMToken: "tok-musa"})

	pushes := &bookingtest.RecordingNotifier{Err: errors.New("unregistered token")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := booking.NewDispatcher(store, pushes, &bookingtest.RecordingPartyNotifier{}, logger)

	b := &models.Booking{UserID: 9, PreferredFare: 80}
	b.ID = 7

	// Failed pushes still count as attempts; the trail records who was tried.
	notified := d.Broadcast(context.Background(), b)
	assert.Equal(t, models.IDList{d1.ID, d2.ID}, notified)
}
