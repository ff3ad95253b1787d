package models

import (
	"gorm.io/gorm"
)

// Review is the immutable record behind a booking's one-shot rating.
type Review struct {
	gorm.Model
	BookingID uint    `gorm:"not null;uniqueIndex" json:"bookingId"`
	UserID    uint    `gorm:"not null" json:"userId"`
	DriverID  uint    `gorm:"not null;index" json:"driverId"`
	Rating    float64 `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string  `json:"comment,omitempty"`

	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Driver *User `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
}

func (Review) TableName() string {
	return "reviews"
}
