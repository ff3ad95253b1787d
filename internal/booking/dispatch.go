package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/chachabrian/specialtrip-backend/internal/models"
	"github.com/chachabrian/specialtrip-backend/internal/observability"
)

// Dispatcher fans a fresh booking out to every dispatch-eligible driver.
// Individual delivery failures are logged and never fail the booking.
type Dispatcher struct {
	directory Directory
	notifier  Notifier
	realtime  PartyNotifier
	logger    *slog.Logger
}

func NewDispatcher(directory Directory, notifier Notifier, realtime PartyNotifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{directory: directory, notifier: notifier, realtime: realtime, logger: logger}
}

// Broadcast notifies every driver with a registered push token about the
// booking and returns the ids it attempted, the audit trail recorded on the
// booking. The list confers no permission.
func (d *Dispatcher) Broadcast(ctx context.Context, b *models.Booking) models.IDList {
	drivers, err := d.directory.NotifiableDrivers(ctx)
	if err != nil {
		d.logger.Error("failed to enumerate drivers for dispatch", "bookingId", b.ID, "error", err)
		return nil
	}

	data := map[string]string{
		"type":          "booking_request",
		"bookingId":     strconv.FormatUint(uint64(b.ID), 10),
		"pickupLat":     strconv.FormatFloat(b.PickupLat, 'f', 6, 64),
		"pickupLng":     strconv.FormatFloat(b.PickupLng, 'f', 6, 64),
		"pickupAddress": b.PickupAddr,
		"preferredFare": strconv.FormatFloat(b.PreferredFare, 'f', 2, 64),
	}
	title := "New Trip Request"
	body := fmt.Sprintf("Pickup at %s, offered fare %.2f", b.PickupAddr, b.PreferredFare)

	notified := make(models.IDList, 0, len(drivers))
	for _, driver := range drivers {
		if d.notifier != nil {
			if err := d.notifier.Send(ctx, driver.FCMToken, title, body, data); err != nil {
				observability.NotificationFailures.Inc()
				d.logger.Warn("driver push failed", "bookingId", b.ID, "driverId", driver.ID, "error", err)
			}
		}
		if d.realtime != nil {
			d.realtime.NotifyUser(driver.ID, "booking_request", map[string]interface{}{
				"bookingId":     b.ID,
				"pickup":        map[string]interface{}{"lat": b.PickupLat, "lng": b.PickupLng, "address": b.PickupAddr},
				"destination":   map[string]interface{}{"lat": b.DestLat, "lng": b.DestLng, "address": b.DestAddr},
				"preferredFare": b.PreferredFare,
				"expiresAt":     b.ExpiresAt,
			})
		}
		notified = append(notified, driver.ID)
	}

	observability.DispatchFanout.Observe(float64(len(notified)))
	return notified
}
