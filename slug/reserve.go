package slug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultReservationTTL is how long a reservation outlives the negotiation
// that took it.
const DefaultReservationTTL = 30 * time.Second

var _ Reserver = (*RedisReserver)(nil)

// RedisReserver keeps slug reservations in Redis so negotiations running in
// other processes see them.
type RedisReserver struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReserver connects to redisURL and verifies the connection.
func NewRedisReserver(redisURL string, ttl time.Duration) (*RedisReserver, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisReserverWithClient(client, ttl), nil
}

// NewRedisReserverWithClient creates a reserver from an existing client.
func NewRedisReserverWithClient(client *redis.Client, ttl time.Duration) *RedisReserver {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &RedisReserver{
		client: client,
		prefix: "slug:reserve:",
		ttl:    ttl,
	}
}

func (r *RedisReserver) key(s string) string {
	return r.prefix + s
}

// Reserve claims s for holder. It returns false if another holder has a live
// reservation.
func (r *RedisReserver) Reserve(ctx context.Context, s, holder string) (bool, error) {
	key := r.key(s)
	ok, err := r.client.SetNX(ctx, key, holder, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve slug: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return r.client.SetNX(ctx, key, holder, r.ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("read slug reservation: %w", err)
	}
	if current != holder {
		return false, nil
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return false, fmt.Errorf("extend slug reservation: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection.
func (r *RedisReserver) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *RedisReserver) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
