package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for the API process. Values come
// from environment variables with defaults that let the binary run locally
// without excessive setup.
type Config struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string

	BookingExpiry          time.Duration
	OfferDeclineExtension  time.Duration
	CompletionRadiusMeters float64
	NearbyRadiusMeters     float64
	ReaperInterval         time.Duration

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		Port:                   "8080",
		DBHost:                 "localhost",
		DBUser:                 "postgres",
		DBName:                 "specialtrip",
		DBPort:                 "5432",
		KafkaTopic:             "booking-events",
		BookingExpiry:          30 * time.Minute,
		OfferDeclineExtension:  5 * time.Minute,
		CompletionRadiusMeters: 300,
		NearbyRadiusMeters:     10000,
		ReaperInterval:         30 * time.Second,
		LogLevel:               "info",
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := defaultConfig()

	setStringFromEnv(&cfg.Port, "PORT")
	setStringFromEnv(&cfg.DBHost, "DB_HOST")
	setStringFromEnv(&cfg.DBUser, "DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	setStringFromEnv(&cfg.DBName, "DB_NAME")
	setStringFromEnv(&cfg.DBPort, "DB_PORT")
	setStringFromEnv(&cfg.RedisURL, "REDIS_URL")
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.LogLevel, "LOG_LEVEL")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	if err := setDurationFromEnv(&cfg.BookingExpiry, "BOOKING_EXPIRY"); err != nil {
		return cfg, err
	}
	if err := setDurationFromEnv(&cfg.OfferDeclineExtension, "OFFER_DECLINE_EXTENSION"); err != nil {
		return cfg, err
	}
	if err := setDurationFromEnv(&cfg.ReaperInterval, "REAPER_INTERVAL"); err != nil {
		return cfg, err
	}
	if err := setFloatFromEnv(&cfg.CompletionRadiusMeters, "COMPLETION_RADIUS_METERS"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("NEARBY_RADIUS_KM"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid NEARBY_RADIUS_KM: %w", err)
		}
		cfg.NearbyRadiusMeters = km * 1000
	}

	if cfg.BookingExpiry <= 0 {
		return cfg, fmt.Errorf("BOOKING_EXPIRY must be positive")
	}
	if cfg.CompletionRadiusMeters <= 0 {
		return cfg, fmt.Errorf("COMPLETION_RADIUS_METERS must be positive")
	}

	return cfg, nil
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setDurationFromEnv(target *time.Duration, key string) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = d
	}
	return nil
}

func setFloatFromEnv(target *float64, key string) error {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = f
	}
	return nil
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
