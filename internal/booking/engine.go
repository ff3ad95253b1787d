package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/events"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/internal/observability"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
)

// Options carries the engine's tunables.
type Options struct {
	// Expiry is how long a fresh booking stays open for drivers.
	Expiry time.Duration
	// DeclineExtension is added to the deadline when a passenger declines
	// a counter-offer and the booking returns to the pool.
	DeclineExtension time.Duration
	// CompletionRadiusMeters is the geofence around the destination.
	CompletionRadiusMeters float64
	// NearbyRadiusMeters bounds the nearby-bookings query for drivers.
	NearbyRadiusMeters float64
}

// DefaultOptions matches the production defaults.
func DefaultOptions() Options {
	return Options{
		Expiry:                 30 * time.Minute,
		DeclineExtension:       5 * time.Minute,
		CompletionRadiusMeters: 300,
		NearbyRadiusMeters:     10000,
	}
}

// Engine is the booking state machine. All mutation funnels through the
// store's conditional updates, so two concurrent writers on the same
// booking resolve to exactly one winner.
type Engine struct {
	store     Store
	directory Directory
	dispatch  *Dispatcher
	notify    PartyNotifier
	sink      events.Sink
	clock     Clock
	logger    *slog.Logger
	opts      Options
}

func NewEngine(store Store, directory Directory, dispatch *Dispatcher, notify PartyNotifier, sink events.Sink, clock Clock, logger *slog.Logger, opts Options) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		directory: directory,
		dispatch:  dispatch,
		notify:    notify,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		opts:      opts,
	}
}

// Location is a coordinate pair with an optional human-readable label.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// CreateParams are the typed inputs of Create.
type CreateParams struct {
	UserID        uint
	Pickup        Location
	Destination   Location
	PreferredFare float64
	UserLocation  *Location
}

// Create opens a new pending booking and broadcasts it to drivers.
// Fails with ErrActiveBookingExists while the user has a booking in flight.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*models.Booking, error) {
	if !utils.ValidCoordinates(p.Pickup.Lat, p.Pickup.Lng) {
		return nil, &ValidationError{Field: "pickup", Reason: "coordinates out of range"}
	}
	if !utils.ValidCoordinates(p.Destination.Lat, p.Destination.Lng) {
		return nil, &ValidationError{Field: "destination", Reason: "coordinates out of range"}
	}
	if p.PreferredFare < 0 {
		return nil, &ValidationError{Field: "preferredFare", Reason: "must be non-negative"}
	}

	active, err := e.store.ActiveForUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveBookingExists
	}

	now := e.clock.Now()
	b := &models.Booking{
		UserID:        p.UserID,
		PickupLat:     p.Pickup.Lat,
		PickupLng:     p.Pickup.Lng,
		PickupAddr:    p.Pickup.Address,
		DestLat:       p.Destination.Lat,
		DestLng:       p.Destination.Lng,
		DestAddr:      p.Destination.Address,
		PreferredFare: p.PreferredFare,
		Status:        models.BookingStatusPending,
		ExpiresAt:     now.Add(e.opts.Expiry),
	}
	if p.UserLocation != nil {
		b.UserLat = p.UserLocation.Lat
		b.UserLng = p.UserLocation.Lng
	}

	if err := e.store.Create(ctx, b); err != nil {
		return nil, err
	}

	observability.BookingsCreated.Inc()
	e.publish(ctx, events.TypeBookingCreated, b)

	if e.dispatch != nil {
		notified := e.dispatch.Broadcast(ctx, b)
		if len(notified) > 0 {
			b.NotifiedDrivers = notified
			if err := e.store.SetNotifiedDrivers(ctx, b.ID, notified); err != nil {
				e.logger.Warn("failed to record notified drivers", "bookingId", b.ID, "error", err)
			}
		}
	}

	return b, nil
}

// DriverRespondParams are the typed inputs of DriverRespond.
type DriverRespondParams struct {
	BookingID   uint
	DriverID    uint
	Accept      bool
	OfferAmount *float64
	Message     string
}

// DriverRespond handles a driver's answer to a pending booking: a straight
// acceptance at the passenger's fare, or a counter-offer. Only the first
// response against a still-pending booking wins; everyone else gets
// ErrStaleState, or ErrExpired when the window has closed.
func (e *Engine) DriverRespond(ctx context.Context, p DriverRespondParams) (*models.Booking, error) {
	driver, err := e.directory.UserByID(ctx, p.DriverID)
	if err != nil {
		return nil, err
	}
	if driver == nil || driver.UserType != models.UserTypeDriver {
		return nil, ErrNotAllowed
	}

	b, err := e.store.ByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if b.Status == models.BookingStatusExpired {
		return nil, ErrExpired
	}
	if b.Status != models.BookingStatusPending {
		observability.StaleResponses.Inc()
		return nil, ErrStaleState
	}

	now := e.clock.Now()
	if !now.Before(b.ExpiresAt) {
		// Lazily reap: the window closed before the sweep got here.
		if err := e.store.ExpireIfStale(ctx, b.ID, now); err == nil {
			observability.BookingsExpired.Inc()
			expired := *b
			expired.Status = models.BookingStatusExpired
			e.publish(ctx, events.TypeBookingExpired, &expired)
		}
		return nil, ErrExpired
	}

	var (
		updates   map[string]interface{}
		eventType string
	)
	switch {
	case p.Accept && p.OfferAmount == nil:
		updates = map[string]interface{}{
			"status":      models.BookingStatusAccepted,
			"driver_id":   p.DriverID,
			"agreed_fare": b.PreferredFare,
			"accepted_at": now,
		}
		eventType = events.TypeDriverAssigned
	case p.OfferAmount != nil:
		if *p.OfferAmount <= 0 {
			return nil, &ValidationError{Field: "offerAmount", Reason: "must be positive"}
		}
		updates = map[string]interface{}{
			"status":        models.BookingStatusOfferMade,
			"driver_id":     p.DriverID,
			"offer_amount":  *p.OfferAmount,
			"offer_message": p.Message,
			"offered_at":    now,
		}
		eventType = events.TypeOfferMade
	default:
		return nil, &ValidationError{Field: "accept", Reason: "response must accept or carry a counter-offer"}
	}

	updated, err := e.store.UpdateWhereStatus(ctx, b.ID, []models.BookingStatus{models.BookingStatusPending}, updates)
	if err != nil {
		if errors.Is(err, ErrStaleState) {
			observability.StaleResponses.Inc()
			return nil, e.refineStale(ctx, b.ID)
		}
		return nil, err
	}

	if eventType == events.TypeDriverAssigned {
		observability.DriverAssignments.Inc()
	} else {
		observability.OffersMade.Inc()
	}
	e.publish(ctx, eventType, updated)

	if e.notify != nil {
		e.notify.NotifyUser(updated.UserID, eventType, map[string]interface{}{
			"bookingId":  updated.ID,
			"driverId":   p.DriverID,
			"driverName": driver.Username,
			"status":     updated.Status,
			"fare":       fareOf(updated),
		})
	}
	return updated, nil
}

// RespondToOffer lets the booking's passenger accept or decline a driver's
// counter-offer. Declining returns the booking to the pool with the driver
// and offer cleared and the deadline extended.
func (e *Engine) RespondToOffer(ctx context.Context, bookingID, userID uint, accepted bool) (*models.Booking, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if b.UserID != userID {
		return nil, ErrNotAllowed
	}
	if b.Status != models.BookingStatusOfferMade {
		if b.Status.IsTerminal() {
			return nil, ErrAlreadyTerminal
		}
		return nil, ErrStaleState
	}

	now := e.clock.Now()
	expected := []models.BookingStatus{models.BookingStatusOfferMade}

	if accepted {
		if b.OfferAmount == nil {
			return nil, ErrStaleState
		}
		updated, err := e.store.UpdateWhereStatus(ctx, b.ID, expected, map[string]interface{}{
			"status":      models.BookingStatusAccepted,
			"agreed_fare": *b.OfferAmount,
			"accepted_at": now,
		})
		if err != nil {
			return nil, err
		}
		observability.DriverAssignments.Inc()
		e.publish(ctx, events.TypeDriverAssigned, updated)
		if e.notify != nil && updated.DriverID != nil {
			e.notify.NotifyUser(*updated.DriverID, "offer_accepted", map[string]interface{}{
				"bookingId": updated.ID,
				"fare":      *b.OfferAmount,
			})
		}
		return updated, nil
	}

	// Capture before the clear; the record won't carry the driver afterwards.
	var declinedDriver uint
	if b.DriverID != nil {
		declinedDriver = *b.DriverID
	}

	updated, err := e.store.UpdateWhereStatus(ctx, b.ID, expected, map[string]interface{}{
		"status":        models.BookingStatusPending,
		"driver_id":     nil,
		"offer_amount":  nil,
		"offer_message": "",
		"offered_at":    nil,
		"expires_at":    b.ExpiresAt.Add(e.opts.DeclineExtension),
	})
	if err != nil {
		return nil, err
	}

	observability.OffersDeclined.Inc()
	e.publish(ctx, events.TypeOfferDeclined, updated)
	if e.notify != nil && declinedDriver != 0 {
		e.notify.NotifyUser(declinedDriver, "offer_declined", map[string]interface{}{
			"bookingId": updated.ID,
		})
	}
	return updated, nil
}

// Start marks the trip underway. Only the assigned driver may call it.
func (e *Engine) Start(ctx context.Context, bookingID, driverID uint) (*models.Booking, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if b.DriverID == nil || *b.DriverID != driverID {
		return nil, ErrNotAllowed
	}
	if b.Status != models.BookingStatusAccepted {
		if b.Status.IsTerminal() {
			return nil, ErrAlreadyTerminal
		}
		return nil, ErrStaleState
	}

	updated, err := e.store.UpdateWhereStatus(ctx, b.ID, []models.BookingStatus{models.BookingStatusAccepted}, map[string]interface{}{
		"status": models.BookingStatusInProgress,
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TypeTripStarted, updated)
	if e.notify != nil {
		e.notify.NotifyUser(updated.UserID, "trip_started", map[string]interface{}{
			"bookingId": updated.ID,
		})
	}
	return updated, nil
}

// CompleteParams are the typed inputs of Complete.
type CompleteParams struct {
	BookingID uint
	CallerID  uint
	// Location is the caller's current fix. When present the geofence is
	// enforced; when absent the check is skipped (degraded GPS mode).
	Location *utils.Point
}

// Complete records a party's completion confirmation. The passenger's
// confirmation is the one that transitions the booking to completed and
// bumps their trip counter; a driver's confirmation is recorded and waits.
func (e *Engine) Complete(ctx context.Context, p CompleteParams) (*models.Booking, error) {
	b, err := e.store.ByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}

	isUser := b.UserID == p.CallerID
	isDriver := b.DriverID != nil && *b.DriverID == p.CallerID
	if !isUser && !isDriver {
		return nil, ErrNotAllowed
	}

	if b.Status != models.BookingStatusAccepted && b.Status != models.BookingStatusInProgress {
		if b.Status.IsTerminal() {
			return nil, ErrAlreadyTerminal
		}
		return nil, &ValidationError{Field: "status", Reason: "trip is not underway"}
	}

	if p.Location != nil {
		dist := utils.HaversineDistance(p.Location.Lat, p.Location.Lng, b.DestLat, b.DestLng)
		if dist > e.opts.CompletionRadiusMeters {
			return nil, &GeofenceError{DistanceMeters: dist, RadiusMeters: e.opts.CompletionRadiusMeters}
		}
	}

	expected := []models.BookingStatus{models.BookingStatusAccepted, models.BookingStatusInProgress}
	updates := map[string]interface{}{}
	if p.Location != nil {
		updates["completion_lat"] = p.Location.Lat
		updates["completion_lng"] = p.Location.Lng
	}

	if isDriver && !isUser {
		updates["driver_confirmed_completion"] = true
		updated, err := e.store.UpdateWhereStatus(ctx, b.ID, expected, updates)
		if err != nil {
			if errors.Is(err, ErrStaleState) {
				return nil, e.refineStale(ctx, b.ID)
			}
			return nil, err
		}
		if e.notify != nil {
			e.notify.NotifyUser(updated.UserID, "driver_confirmed_completion", map[string]interface{}{
				"bookingId": updated.ID,
			})
		}
		return updated, nil
	}

	now := e.clock.Now()
	updates["user_confirmed_completion"] = true
	updates["status"] = models.BookingStatusCompleted
	updates["completed_at"] = now

	updated, err := e.store.UpdateWhereStatus(ctx, b.ID, expected, updates)
	if err != nil {
		if errors.Is(err, ErrStaleState) {
			return nil, e.refineStale(ctx, b.ID)
		}
		return nil, err
	}

	if err := e.store.IncrementTripsCompleted(ctx, updated.UserID); err != nil {
		e.logger.Warn("failed to bump trip counter", "userId", updated.UserID, "error", err)
	}

	observability.BookingsCompleted.Inc()
	e.publish(ctx, events.TypeBookingCompleted, updated)
	if e.notify != nil && updated.DriverID != nil {
		e.notify.NotifyUser(*updated.DriverID, "booking_completed", map[string]interface{}{
			"bookingId": updated.ID,
			"fare":      fareOf(updated),
		})
	}
	return updated, nil
}

// CancelParams are the typed inputs of Cancel.
type CancelParams struct {
	BookingID uint
	CallerID  uint
	// Admin marks an administrative cancellation; attributed to the system.
	Admin  bool
	Reason string
}

// Cancel moves a non-terminal booking to cancelled. Allowed to the booking's
// passenger, its assigned driver, or an administrative caller. Racing against
// completion, whichever conditional update lands first wins and the loser
// sees ErrAlreadyTerminal.
func (e *Engine) Cancel(ctx context.Context, p CancelParams) (*models.Booking, error) {
	b, err := e.store.ByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}

	var by models.CancelledBy
	switch {
	case p.Admin:
		by = models.CancelledBySystem
	case b.UserID == p.CallerID:
		by = models.CancelledByUser
	case b.DriverID != nil && *b.DriverID == p.CallerID:
		by = models.CancelledByDriver
	default:
		return nil, ErrNotAllowed
	}

	if b.Status.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}

	updated, err := e.store.UpdateWhereStatus(ctx, b.ID, models.ActiveStatuses, map[string]interface{}{
		"status":              models.BookingStatusCancelled,
		"cancelled_by":        by,
		"cancellation_reason": p.Reason,
		"cancelled_at":        e.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrStaleState) {
			return nil, ErrAlreadyTerminal
		}
		return nil, err
	}

	observability.BookingsCancelled.Inc()
	e.publish(ctx, events.TypeBookingCancelled, updated)
	if e.notify != nil {
		data := map[string]interface{}{
			"bookingId":   updated.ID,
			"cancelledBy": by,
			"reason":      p.Reason,
		}
		if by != models.CancelledByUser {
			e.notify.NotifyUser(updated.UserID, "booking_cancelled", data)
		}
		if updated.DriverID != nil && by != models.CancelledByDriver {
			e.notify.NotifyUser(*updated.DriverID, "booking_cancelled", data)
		}
	}
	return updated, nil
}

// ActiveBooking returns the user's booking in flight, or nil.
func (e *Engine) ActiveBooking(ctx context.Context, userID uint) (*models.Booking, error) {
	return e.store.ActiveForUser(ctx, userID)
}

// ByID returns a booking visible to its parties or an admin.
func (e *Engine) ByID(ctx context.Context, bookingID, callerID uint, admin bool) (*models.Booking, error) {
	b, err := e.store.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	if !admin && b.UserID != callerID && (b.DriverID == nil || *b.DriverID != callerID) {
		return nil, ErrNotAllowed
	}
	return b, nil
}

// NearbyPending lists pending bookings within radiusMeters of the given fix,
// bounding-box pre-filtered then ordered by exact haversine distance.
func (e *Engine) NearbyPending(ctx context.Context, lat, lng, radiusMeters float64) ([]models.Booking, error) {
	if !utils.ValidCoordinates(lat, lng) {
		return nil, &ValidationError{Field: "location", Reason: "coordinates out of range"}
	}
	if radiusMeters <= 0 {
		radiusMeters = e.opts.NearbyRadiusMeters
	}

	box := utils.GetBoundingBox(lat, lng, radiusMeters)
	candidates, err := e.store.PendingInBox(ctx, box)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	nearby := make([]models.Booking, 0, len(candidates))
	for _, b := range candidates {
		if !now.Before(b.ExpiresAt) {
			continue
		}
		if utils.HaversineDistance(lat, lng, b.PickupLat, b.PickupLng) <= radiusMeters {
			nearby = append(nearby, b)
		}
	}
	return nearby, nil
}

// History lists the caller's terminal bookings, newest first.
func (e *Engine) History(ctx context.Context, userID uint, asDriver bool, limit, offset int) ([]models.Booking, int64, error) {
	return e.store.History(ctx, userID, asDriver, limit, offset)
}

// refineStale re-reads after a lost conditional update so the caller sees
// ErrExpired or ErrAlreadyTerminal where those are the truer story.
func (e *Engine) refineStale(ctx context.Context, id uint) error {
	b, err := e.store.ByID(ctx, id)
	if err != nil || b == nil {
		return ErrStaleState
	}
	switch {
	case b.Status == models.BookingStatusExpired:
		return ErrExpired
	case b.Status.IsTerminal():
		return ErrAlreadyTerminal
	}
	return ErrStaleState
}

func (e *Engine) publish(ctx context.Context, eventType string, b *models.Booking) {
	ev := events.Event{
		Type:      eventType,
		BookingID: b.ID,
		UserID:    b.UserID,
		DriverID:  b.DriverID,
		Status:    b.Status,
		Fare:      b.AgreedFare,
		At:        e.clock.Now(),
	}
	if err := e.sink.Publish(ctx, ev); err != nil {
		e.logger.Warn("failed to publish booking event", "type", eventType, "bookingId", b.ID, "error", err)
	}
}

func fareOf(b *models.Booking) float64 {
	if b.AgreedFare != nil {
		return *b.AgreedFare
	}
	if b.OfferAmount != nil {
		return *b.OfferAmount
	}
	return b.PreferredFare
}
