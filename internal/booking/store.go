package booking

import (
	"context"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
)

// Store is the persistence surface of the negotiation engine. Every status
// mutation goes through UpdateWhereStatus so that concurrent writers resolve
// to exactly one winner; a plain read-modify-save path does not exist.
type Store interface {
	Create(ctx context.Context, b *models.Booking) error
	ByID(ctx context.Context, id uint) (*models.Booking, error)

	// ActiveForUser returns the user's booking in a non-terminal state,
	// or (nil, nil) when there is none.
	ActiveForUser(ctx context.Context, userID uint) (*models.Booking, error)

	// PendingInBox lists pending bookings inside a bounding box, the cheap
	// pre-filter before the exact haversine check.
	PendingInBox(ctx context.Context, box utils.BoundingBox) ([]models.Booking, error)

	// UpdateWhereStatus applies updates only while the booking's status is
	// one of expected, returning the post-update record. Returns
	// ErrStaleState when no row matched.
	UpdateWhereStatus(ctx context.Context, id uint, expected []models.BookingStatus, updates map[string]interface{}) (*models.Booking, error)

	// SetNotifiedDrivers records the dispatch audit trail. Not conditional:
	// the list confers no permission, losing a race here is harmless.
	SetNotifiedDrivers(ctx context.Context, id uint, drivers models.IDList) error

	// StalePending lists ids of pending bookings whose expiry has passed.
	StalePending(ctx context.Context, now time.Time) ([]uint, error)

	// ExpireIfStale transitions a single booking to expired, guarded on both
	// status=pending and expires_at<now so a concurrently extended booking
	// survives the sweep. Returns ErrStaleState when the guard fails.
	ExpireIfStale(ctx context.Context, id uint, now time.Time) error

	// RecordRating atomically writes the one-shot rating onto the booking,
	// appends the review row and folds the value into the driver's running
	// mean. Returns ErrRatingAlreadySet when the booking is already rated.
	RecordRating(ctx context.Context, review *models.Review) error

	IncrementTripsCompleted(ctx context.Context, userID uint) error

	// History lists the caller's terminal bookings, newest first.
	History(ctx context.Context, userID uint, asDriver bool, limit, offset int) ([]models.Booking, int64, error)
}

// Directory is the read-only identity view the engine consumes.
type Directory interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)

	// NotifiableDrivers lists every driver with a registered push token.
	// Online state is not tracked; dispatch reaches all of them.
	NotifiableDrivers(ctx context.Context) ([]models.User, error)
}

// Notifier delivers a push message to a single address token.
// Fire and forget: failures are logged by callers, never retried here.
type Notifier interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// PartyNotifier pushes a realtime event at a connected user, regardless of
// transport. Delivery is best effort and never blocks a state transition.
type PartyNotifier interface {
	NotifyUser(userID uint, event string, data map[string]interface{})
}

// Clock is injectable so expiry logic is deterministically testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
