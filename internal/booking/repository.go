package booking

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
	"gorm.io/gorm"
)

// GormStore backs Store and Directory with Postgres. The conditional
// updates rely on the affected-row count of a single UPDATE, so the
// check and the transition are one atomic statement.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, b *models.Booking) error {
	err := s.db.WithContext(ctx).Create(b).Error
	// The partial unique index on bookings(user_id) backs the
	// single-active-booking invariant when two creates race.
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveBookingExists
	}
	return err
}

func (s *GormStore) ByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Preload("User").Preload("Driver").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) ActiveForUser(ctx context.Context, userID uint) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Preload("Driver").
		Where("user_id = ? AND status IN ?", userID, models.ActiveStatuses).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) PendingInBox(ctx context.Context, box utils.BoundingBox) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).Preload("User").
		Where("status = ?", models.BookingStatusPending).
		Where("pickup_lat BETWEEN ? AND ?", box.SouthWest.Lat, box.NorthEast.Lat).
		Where("pickup_lng BETWEEN ? AND ?", box.SouthWest.Lng, box.NorthEast.Lng).
		Order("created_at ASC").
		Find(&bookings).Error
	return bookings, err
}

func (s *GormStore) UpdateWhereStatus(ctx context.Context, id uint, expected []models.BookingStatus, updates map[string]interface{}) (*models.Booking, error) {
	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleState
	}
	return s.ByID(ctx, id)
}

func (s *GormStore) SetNotifiedDrivers(ctx context.Context, id uint, drivers models.IDList) error {
	return s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Update("notified_drivers", drivers).Error
}

func (s *GormStore) StalePending(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("status = ? AND expires_at < ?", models.BookingStatusPending, now).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) ExpireIfStale(ctx context.Context, id uint, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ? AND expires_at < ?", id, models.BookingStatusPending, now).
		Update("status", models.BookingStatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (s *GormStore) RecordRating(ctx context.Context, review *models.Review) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND rating IS NULL", review.BookingID).
			Updates(map[string]interface{}{
				"rating":         review.Rating,
				"rating_comment": review.Comment,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRatingAlreadySet
		}

		if err := tx.Create(review).Error; err != nil {
			return err
		}

		// Running mean folded in a single statement, so concurrent reviews
		// for the same driver never lose a contribution.
		return tx.Model(&models.User{}).
			Where("id = ?", review.DriverID).
			Updates(map[string]interface{}{
				"rating":      gorm.Expr("(rating * num_reviews + ?) / (num_reviews + 1)", review.Rating),
				"num_reviews": gorm.Expr("num_reviews + 1"),
			}).Error
	})
}

func (s *GormStore) IncrementTripsCompleted(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("trips_completed", gorm.Expr("trips_completed + 1")).Error
}

func (s *GormStore) History(ctx context.Context, userID uint, asDriver bool, limit, offset int) ([]models.Booking, int64, error) {
	terminal := []models.BookingStatus{
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
	}

	q := s.db.WithContext(ctx).Model(&models.Booking{}).Where("status IN ?", terminal)
	if asDriver {
		q = q.Where("driver_id = ?", userID)
	} else {
		q = q.Where("user_id = ?", userID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	err := q.Preload("User").Preload("Driver").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&bookings).Error
	return bookings, total, err
}

func (s *GormStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) NotifiableDrivers(ctx context.Context) ([]models.User, error) {
	var drivers []models.User
	err := s.db.WithContext(ctx).
		Where("user_type = ? AND fcm_token <> ''", models.UserTypeDriver).
		Find(&drivers).Error
	return drivers, err
}
