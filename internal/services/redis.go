package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// SetActiveBooking caches the user's booking in flight so the active-booking
// lookup can skip Postgres on the hot path. The cache is advisory only; the
// database remains the source of truth for the invariant.
func SetActiveBooking(ctx context.Context, userID, bookingID uint) error {
	key := fmt.Sprintf("booking:active:%d", userID)
	return RedisClient.Set(ctx, key, bookingID, time.Hour).Err()
}

// GetActiveBooking retrieves the cached active booking id for a user.
func GetActiveBooking(ctx context.Context, userID uint) (uint, error) {
	key := fmt.Sprintf("booking:active:%d", userID)
	id, err := RedisClient.Get(ctx, key).Uint64()
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ClearActiveBooking drops the cached entry once the booking goes terminal.
func ClearActiveBooking(ctx context.Context, userID uint) error {
	key := fmt.Sprintf("booking:active:%d", userID)
	return RedisClient.Del(ctx, key).Err()
}

// PublishBookingUpdate publishes a booking status change to Redis pub/sub
// for any sibling process holding WebSocket connections.
func PublishBookingUpdate(ctx context.Context, bookingID uint, status string, data map[string]interface{}) error {
	updateData := map[string]interface{}{
		"bookingId": bookingID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", jsonData).Err()
}
