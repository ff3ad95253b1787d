package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/internal/services"
	"github.com/chachabrian/specialtrip-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// respondBookingError maps the engine's error taxonomy onto HTTP.
func respondBookingError(c *gin.Context, err error) {
	var vErr *booking.ValidationError
	var gErr *booking.GeofenceError

	switch {
	case errors.As(err, &vErr):
		c.JSON(400, gin.H{"error": vErr.Error()})
	case errors.As(err, &gErr):
		c.JSON(422, gin.H{
			"error":          "Too far from destination",
			"distanceMeters": gErr.DistanceMeters,
			"radiusMeters":   gErr.RadiusMeters,
		})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(404, gin.H{"error": "Booking not found"})
	case errors.Is(err, booking.ErrNotAllowed):
		c.JSON(403, gin.H{"error": "Not allowed on this booking"})
	case errors.Is(err, booking.ErrExpired):
		c.JSON(410, gin.H{"error": "Booking expired"})
	case booking.IsConflict(err):
		c.JSON(409, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": "Internal error"})
	}
}

func bookingIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid booking ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateBooking opens a new special-trip request and broadcasts it to drivers
func CreateBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypePassenger) {
			c.JSON(403, gin.H{"error": "Only passengers can create bookings"})
			return
		}

		// Coordinates bind as pointers: zero is a legal latitude and
		// longitude, a bare float64 would fail `required` on it.
		var input struct {
			Pickup struct {
				Lat     *float64 `json:"lat" binding:"required"`
				Lng     *float64 `json:"lng" binding:"required"`
				Address string   `json:"address"`
			} `json:"pickup" binding:"required"`
			Destination struct {
				Lat     *float64 `json:"lat" binding:"required"`
				Lng     *float64 `json:"lng" binding:"required"`
				Address string   `json:"address"`
			} `json:"destination" binding:"required"`
			PreferredFare *float64 `json:"preferredFare" binding:"required"`
			UserLocation  *struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"userLocation"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		params := booking.CreateParams{
			UserID:        userID,
			Pickup:        booking.Location{Lat: *input.Pickup.Lat, Lng: *input.Pickup.Lng, Address: input.Pickup.Address},
			Destination:   booking.Location{Lat: *input.Destination.Lat, Lng: *input.Destination.Lng, Address: input.Destination.Address},
			PreferredFare: *input.PreferredFare,
		}
		if input.UserLocation != nil {
			params.UserLocation = &booking.Location{Lat: input.UserLocation.Lat, Lng: input.UserLocation.Lng}
		}

		b, err := engine.Create(c.Request.Context(), params)
		if err != nil {
			respondBookingError(c, err)
			return
		}

		cacheActiveBooking(b.UserID, b.ID)

		c.JSON(201, gin.H{
			"message":         "Booking created. Nearby drivers have been notified.",
			"booking":         b,
			"notifiedDrivers": len(b.NotifiedDrivers),
		})
	}
}

// GetActiveBooking returns the caller's booking in flight
func GetActiveBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")

		b, err := engine.ActiveBooking(c.Request.Context(), userID)
		if err != nil {
			respondBookingError(c, err)
			return
		}
		if b == nil {
			c.JSON(404, gin.H{"error": "No active booking"})
			return
		}
		c.JSON(200, gin.H{"booking": b})
	}
}

// GetNearbyBookings lists pending bookings around a driver's position
func GetNearbyBookings(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := c.GetString("userType")
		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can browse pending bookings"})
			return
		}

		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			c.JSON(400, gin.H{"error": "lat and lng query parameters are required"})
			return
		}

		radiusMeters := 0.0
		if radiusStr := c.Query("radius"); radiusStr != "" {
			radiusKm, err := strconv.ParseFloat(radiusStr, 64)
			if err != nil || radiusKm <= 0 {
				c.JSON(400, gin.H{"error": "Invalid radius"})
				return
			}
			radiusMeters = radiusKm * 1000
		}

		bookings, err := engine.NearbyPending(c.Request.Context(), lat, lng, radiusMeters)
		if err != nil {
			respondBookingError(c, err)
			return
		}
		c.JSON(200, gin.H{"bookings": bookings, "count": len(bookings)})
	}
}

// GetBookingHistory lists the caller's finished bookings
func GetBookingHistory(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		asDriver := c.GetString("userType") == string(models.UserTypeDriver)

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			page = 1
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil || limit < 1 || limit > 100 {
			limit = 10
		}
		offset := (page - 1) * limit

		bookings, total, err := engine.History(c.Request.Context(), userID, asDriver, limit, offset)
		if err != nil {
			respondBookingError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"bookings": bookings,
			"pagination": gin.H{
				"page":       page,
				"limit":      limit,
				"total":      total,
				"totalPages": (total + int64(limit) - 1) / int64(limit),
			},
		})
	}
}

// GetBooking returns a single booking to its parties
func GetBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		userID := c.GetUint("userId")
		admin := c.GetString("userType") == string(models.UserTypeAdmin)

		b, err := engine.ByID(c.Request.Context(), bookingID, userID, admin)
		if err != nil {
			respondBookingError(c, err)
			return
		}
		c.JSON(200, gin.H{"booking": b})
	}
}

// DriverRespond handles a driver accepting a booking or counter-offering
func DriverRespond(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		driverID := c.GetUint("userId")
		userType := c.GetString("userType")

		if userType != string(models.UserTypeDriver) {
			c.JSON(403, gin.H{"error": "Only drivers can respond to bookings"})
			return
		}

		var input struct {
			Accept       bool     `json:"accept"`
			CounterOffer *float64 `json:"counterOffer"`
			Message      string   `json:"message"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := engine.DriverRespond(c.Request.Context(), booking.DriverRespondParams{
			BookingID:   bookingID,
			DriverID:    driverID,
			Accept:      input.Accept,
			OfferAmount: input.CounterOffer,
			Message:     input.Message,
		})
		if err != nil {
			respondBookingError(c, err)
			return
		}

		publishBookingUpdate(b)
		c.JSON(200, gin.H{"message": "Response recorded", "booking": b})
	}
}

// RespondToOffer lets the passenger accept or decline a counter-offer
func RespondToOffer(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		userID := c.GetUint("userId")

		var input struct {
			Accepted *bool `json:"accepted" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := engine.RespondToOffer(c.Request.Context(), bookingID, userID, *input.Accepted)
		if err != nil {
			respondBookingError(c, err)
			return
		}

		publishBookingUpdate(b)
		c.JSON(200, gin.H{"message": "Offer response recorded", "booking": b})
	}
}

// StartTrip marks an accepted booking underway
func StartTrip(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		driverID := c.GetUint("userId")

		b, err := engine.Start(c.Request.Context(), bookingID, driverID)
		if err != nil {
			respondBookingError(c, err)
			return
		}

		publishBookingUpdate(b)
		c.JSON(200, gin.H{"message": "Trip started", "booking": b})
	}
}

// CompleteTrip records a completion confirmation, geofenced on the destination
func CompleteTrip(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		callerID := c.GetUint("userId")

		var input struct {
			Location *struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		params := booking.CompleteParams{BookingID: bookingID, CallerID: callerID}
		if input.Location != nil {
			params.Location = &utils.Point{Lat: input.Location.Lat, Lng: input.Location.Lng}
		}

		b, err := engine.Complete(c.Request.Context(), params)
		if err != nil {
			respondBookingError(c, err)
			return
		}

		if b.Status == models.BookingStatusCompleted {
			clearActiveBooking(b.UserID)
		}
		publishBookingUpdate(b)
		c.JSON(200, gin.H{"message": "Completion recorded", "booking": b})
	}
}

// CancelBooking cancels a non-terminal booking
func CancelBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		callerID := c.GetUint("userId")
		admin := c.GetString("userType") == string(models.UserTypeAdmin)

		var input struct {
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := engine.Cancel(c.Request.Context(), booking.CancelParams{
			BookingID: bookingID,
			CallerID:  callerID,
			Admin:     admin,
			Reason:    input.Reason,
		})
		if err != nil {
			respondBookingError(c, err)
			return
		}

		clearActiveBooking(b.UserID)
		publishBookingUpdate(b)
		c.JSON(200, gin.H{"message": "Booking cancelled", "booking": b})
	}
}

// RateTrip records the passenger's one-shot rating for a completed booking
func RateTrip(ledger *booking.RatingLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := bookingIDParam(c)
		if !ok {
			return
		}
		userID := c.GetUint("userId")

		var input struct {
			Rating  *float64 `json:"rating" binding:"required"`
			Comment string   `json:"comment"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		review, err := ledger.Rate(c.Request.Context(), booking.RateParams{
			BookingID: bookingID,
			UserID:    userID,
			Rating:    *input.Rating,
			Comment:   input.Comment,
		})
		if err != nil {
			respondBookingError(c, err)
			return
		}

		c.JSON(200, gin.H{"message": "Rating recorded", "review": review})
	}
}

// cacheActiveBooking and friends keep the advisory Redis cache in step.
// The database stays authoritative; cache errors are ignored.
func cacheActiveBooking(userID, bookingID uint) {
	if services.RedisClient == nil {
		return
	}
	_ = services.SetActiveBooking(context.Background(), userID, bookingID)
}

func clearActiveBooking(userID uint) {
	if services.RedisClient == nil {
		return
	}
	_ = services.ClearActiveBooking(context.Background(), userID)
}

func publishBookingUpdate(b *models.Booking) {
	if services.RedisClient == nil {
		return
	}
	_ = services.PublishBookingUpdate(context.Background(), b.ID, string(b.Status), map[string]interface{}{
		"userId":   b.UserID,
		"driverId": b.DriverID,
	})
}
