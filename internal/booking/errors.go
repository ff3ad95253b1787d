package booking

import (
	"errors"
	"fmt"
)

// Conflict family: a legitimate race lost or a precondition violated.
// Surfaced to the caller as a retry-or-abandon decision.
var (
	ErrActiveBookingExists = errors.New("user already has an active booking")
	ErrStaleState          = errors.New("booking no longer available")
	ErrAlreadyTerminal     = errors.New("booking already in a terminal state")
	ErrRatingAlreadySet    = errors.New("booking already rated")
)

// ErrExpired is kept distinct from ErrStaleState so clients can show
// "offer expired" rather than "someone else took it".
var ErrExpired = errors.New("booking expired")

var (
	ErrNotFound   = errors.New("booking not found")
	ErrNotAllowed = errors.New("caller not allowed on this booking")
)

// ValidationError rejects bad input before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GeofenceError gates completion. DistanceMeters is the measured distance
// so the caller knows how much closer to get before retrying.
type GeofenceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("too far from destination: %.0fm away, must be within %.0fm", e.DistanceMeters, e.RadiusMeters)
}

// IsConflict reports whether err belongs to the conflict family.
func IsConflict(err error) bool {
	return errors.Is(err, ErrActiveBookingExists) ||
		errors.Is(err, ErrStaleState) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrRatingAlreadySet)
}
