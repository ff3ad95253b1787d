package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypePassenger UserType = "passenger"
	UserTypeDriver    UserType = "driver"
	UserTypeAdmin     UserType = "admin"
)

type User struct {
	gorm.Model
	Username    string   `gorm:"uniqueIndex;not null" json:"username"`
	Email       string   `gorm:"uniqueIndex;not null" json:"email"`
	Password    string   `gorm:"not null" json:"-"`
	PhoneNumber string   `json:"phone"`
	UserType    UserType `gorm:"not null;default:'passenger'" json:"userType"`

	// Push delivery address. A driver with an empty token is invisible to dispatch.
	FCMToken string `json:"-"`

	// Driver rating aggregate: running mean over NumReviews contributions.
	Rating     float64 `gorm:"not null;default:0" json:"rating"`
	NumReviews int     `gorm:"not null;default:0" json:"numReviews"`

	// Passenger counter, bumped once per completed trip.
	TripsCompleted int `gorm:"not null;default:0" json:"tripsCompleted"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}
