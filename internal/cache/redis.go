package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-bribe-backend/internal/domain"
)

const redisPrefix = "track_result:"

// Redis is a TrackResults shared by every replica.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to url and checks the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// Put stores reports as JSON with the configured TTL.
func (r *Redis) Put(ctx context.Context, reports []domain.TrackedReport) (string, error) {
	b, err := json.Marshal(reports)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := r.client.Set(ctx, redisPrefix+token, b, r.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Take reads and deletes the entry with GETDEL.
func (r *Redis) Take(ctx context.Context, token string) ([]domain.TrackedReport, bool, error) {
	b, err := r.client.GetDel(ctx, redisPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var reports []domain.TrackedReport
	if err := json.Unmarshal(b, &reports); err != nil {
		return nil, false, err
	}
	return reports, true, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
