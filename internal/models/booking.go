package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusOfferMade  BookingStatus = "offer_made"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusExpired    BookingStatus = "expired"
)

// ActiveStatuses are the states in which a passenger is considered to
// already have a booking in flight. At most one per user may exist.
var ActiveStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusOfferMade,
	BookingStatusAccepted,
	BookingStatusInProgress,
}

// IsTerminal reports whether no further transition is permitted from s.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

type CancelledBy string

const (
	CancelledByUser   CancelledBy = "user"
	CancelledByDriver CancelledBy = "driver"
	CancelledBySystem CancelledBy = "system"
)

// IDList stores a set of user ids as a JSON column.
type IDList []uint

func (l IDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *IDList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported type %T for IDList", value)
}

type Booking struct {
	gorm.Model
	UserID   uint  `gorm:"not null;index" json:"userId"`
	DriverID *uint `json:"driverId,omitempty"`

	PickupLat  float64 `gorm:"not null" json:"pickupLat"`
	PickupLng  float64 `gorm:"not null" json:"pickupLng"`
	PickupAddr string  `json:"pickupAddress"`
	DestLat    float64 `gorm:"not null;index:idx_bookings_dest" json:"destLat"`
	DestLng    float64 `gorm:"not null;index:idx_bookings_dest" json:"destLng"`
	DestAddr   string  `json:"destAddress"`

	// Passenger position when the request was made.
	UserLat float64 `json:"userLat"`
	UserLng float64 `json:"userLng"`

	PreferredFare float64    `gorm:"not null" json:"preferredFare"`
	OfferAmount   *float64   `json:"offerAmount,omitempty"`
	OfferMessage  string     `json:"offerMessage,omitempty"`
	OfferedAt     *time.Time `json:"offeredAt,omitempty"`
	AgreedFare    *float64   `json:"agreedFare,omitempty"`

	Status BookingStatus `gorm:"not null;default:'pending';index" json:"status"`

	UserConfirmedCompletion   bool     `gorm:"not null;default:false" json:"userConfirmedCompletion"`
	DriverConfirmedCompletion bool     `gorm:"not null;default:false" json:"driverConfirmedCompletion"`
	CompletionLat             *float64 `json:"completionLat,omitempty"`
	CompletionLng             *float64 `json:"completionLng,omitempty"`

	CancelledBy        CancelledBy `json:"cancelledBy,omitempty"`
	CancellationReason string      `json:"cancellationReason,omitempty"`

	Rating        *float64 `json:"rating,omitempty"`
	RatingComment string   `json:"ratingComment,omitempty"`

	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expiresAt"`

	// Audit trail of drivers dispatch reached. Confers no permission:
	// any driver may respond while the booking is pending.
	NotifiedDrivers IDList `gorm:"type:text" json:"notifiedDrivers"`

	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Driver *User `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
}

func (Booking) TableName() string {
	return "bookings"
}
