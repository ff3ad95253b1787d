package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.BookingExpiry)
	assert.Equal(t, 5*time.Minute, cfg.OfferDeclineExtension)
	assert.Equal(t, 300.0, cfg.CompletionRadiusMeters)
	assert.Equal(t, 10000.0, cfg.NearbyRadiusMeters)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOKING_EXPIRY", "45m")
	t.Setenv("NEARBY_RADIUS_KM", "25")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Minute, cfg.BookingExpiry)
	assert.Equal(t, 25000.0, cfg.NearbyRadiusMeters)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BOOKING_EXPIRY", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveExpiry(t *testing.T) {
	t.Setenv("BOOKING_EXPIRY", "-1m")
	_, err := Load()
	assert.Error(t, err)
}
