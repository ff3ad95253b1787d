// Package bookingtest provides in-memory fakes for exercising the
// negotiation engine without Postgres. The store honours the same
// compare-and-set contract as the GORM store: a conditional update
// checks and mutates under one lock, so concurrent callers resolve
// to exactly one winner.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
)

type MemStore struct {
	mu       sync.Mutex
	nextID   uint
	bookings map[uint]*models.Booking
	users    map[uint]*models.User
	reviews  []models.Review
}

func NewMemStore() *MemStore {
	return &MemStore{
		nextID:   1,
		bookings: make(map[uint]*models.Booking),
		users:    make(map[uint]*models.User),
	}
}

// AddUser seeds a user, assigning an id when none is set.
func (s *MemStore) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	} else if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	s.users[u.ID] = &u
	return &u
}

// User returns a copy of the stored user.
func (s *MemStore) User(id uint) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

// Booking returns a copy of the stored booking.
func (s *MemStore) Booking(id uint) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

// Reviews returns a copy of the recorded reviews.
func (s *MemStore) Reviews() []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

func (s *MemStore) Create(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if existing.UserID == b.UserID && !existing.Status.IsTerminal() {
			return booking.ErrActiveBookingExists
		}
	}
	b.ID = s.nextID
	s.nextID++
	b.CreatedAt = time.Now()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *MemStore) ByID(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) ActiveForUser(ctx context.Context, userID uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userID && !b.Status.IsTerminal() {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) PendingInBox(ctx context.Context, box utils.BoundingBox) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status != models.BookingStatusPending {
			continue
		}
		if utils.IsPointInBoundingBox(utils.Point{Lat: b.PickupLat, Lng: b.PickupLng}, box) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateWhereStatus(ctx context.Context, id uint, expected []models.BookingStatus, updates map[string]interface{}) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrStaleState
	}
	matched := false
	for _, st := range expected {
		if b.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, booking.ErrStaleState
	}
	applyUpdates(b, updates)
	cp := *b
	return &cp, nil
}

func (s *MemStore) SetNotifiedDrivers(ctx context.Context, id uint, drivers models.IDList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.NotifiedDrivers = drivers
	}
	return nil
}

func (s *MemStore) StalePending(ctx context.Context, now time.Time) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for _, b := range s.bookings {
		if b.Status == models.BookingStatusPending && b.ExpiresAt.Before(now) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemStore) ExpireIfStale(ctx context.Context, id uint, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != models.BookingStatusPending || !b.ExpiresAt.Before(now) {
		return booking.ErrStaleState
	}
	b.Status = models.BookingStatusExpired
	return nil
}

func (s *MemStore) RecordRating(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[review.BookingID]
	if !ok {
		return booking.ErrStaleState
	}
	if b.Rating != nil {
		return booking.ErrRatingAlreadySet
	}
	r := review.Rating
	b.Rating = &r
	b.RatingComment = review.Comment
	s.reviews = append(s.reviews, *review)

	if driver, ok := s.users[review.DriverID]; ok {
		driver.Rating = (driver.Rating*float64(driver.NumReviews) + review.Rating) / float64(driver.NumReviews+1)
		driver.NumReviews++
	}
	return nil
}

func (s *MemStore) IncrementTripsCompleted(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.TripsCompleted++
	}
	return nil
}

func (s *MemStore) History(ctx context.Context, userID uint, asDriver bool, limit, offset int) ([]models.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if !b.Status.IsTerminal() {
			continue
		}
		if asDriver {
			if b.DriverID == nil || *b.DriverID != userID {
				continue
			}
		} else if b.UserID != userID {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *MemStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) NotifiableDrivers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.UserType == models.UserTypeDriver && u.FCMToken != "" {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func applyUpdates(b *models.Booking, updates map[string]interface{}) {
	for col, v := range updates {
		switch col {
		case "status":
			b.Status = v.(models.BookingStatus)
		case "driver_id":
			if v == nil {
				b.DriverID = nil
			} else {
				id := v.(uint)
				b.DriverID = &id
			}
		case "agreed_fare":
			f := v.(float64)
			b.AgreedFare = &f
		case "offer_amount":
			if v == nil {
				b.OfferAmount = nil
			} else {
				f := v.(float64)
				b.OfferAmount = &f
			}
		case "offer_message":
			b.OfferMessage = v.(string)
		case "offered_at":
			b.OfferedAt = timePtr(v)
		case "accepted_at":
			b.AcceptedAt = timePtr(v)
		case "completed_at":
			b.CompletedAt = timePtr(v)
		case "cancelled_at":
			b.CancelledAt = timePtr(v)
		case "expires_at":
			b.ExpiresAt = v.(time.Time)
		case "user_confirmed_completion":
			b.UserConfirmedCompletion = v.(bool)
		case "driver_confirmed_completion":
			b.DriverConfirmedCompletion = v.(bool)
		case "completion_lat":
			f := v.(float64)
			b.CompletionLat = &f
		case "completion_lng":
			f := v.(float64)
			b.CompletionLng = &f
		case "cancelled_by":
			b.CancelledBy = v.(models.CancelledBy)
		case "cancellation_reason":
			b.CancellationReason = v.(string)
		}
	}
}

func timePtr(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}
