package database

import (
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Booking{},
		&models.Review{},
	)
	if err != nil {
		return err
	}

	// One live booking per passenger, enforced at the database even when two
	// creates race past the application-level check.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_one_active_per_user
		ON bookings (user_id)
		WHERE status IN ('pending', 'offer_made', 'accepted', 'in_progress')
		AND deleted_at IS NULL`).Error; err != nil {
		return err
	}

	// Update constraint
	db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
	if err := db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('passenger', 'driver', 'admin'))`).Error; err != nil {
		return err
	}

	db.Exec(`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`)
	if err := db.Exec(`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check CHECK (status IN ('pending', 'offer_made', 'accepted', 'in_progress', 'completed', 'cancelled', 'expired'))`).Error; err != nil {
		return err
	}

	return nil
}
