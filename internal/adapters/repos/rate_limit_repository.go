package repos

import (
	"context"
	"errors"
	"time"

	"github.com/floralens/identify/internal/infrastructure"
	"github.com/redis/go-redis/v9"
	"github.com/throttled/throttled/v2"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitStore backs the GCRA rate limiter with KeyDB. It implements
// throttled.GCRAStoreCtx over the client's int64 conditional-write
// primitives.
type RateLimitStore struct {
	client *infrastructure.KeydbClient
	prefix string
}

// NewRateLimitStore creates a new rate limit store.
func NewRateLimitStore(client *infrastructure.KeydbClient) (throttled.GCRAStoreCtx, error) {
	return &RateLimitStore{
		client: client,
		prefix: rateLimitKeyPrefix,
	}, nil
}

// GetWithTime returns the stored theoretical-arrival-time value and the
// read timestamp. throttled's store contract wants -1 for an absent key;
// 0 would be taken for a real stored value and break the CAS path.
func (s *RateLimitStore) GetWithTime(ctx context.Context, key string) (int64, time.Time, error) {
	value, readAt, err := s.client.GetInt64(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, time.Now(), nil
		}

		return 0, time.Time{}, err
	}

	return value, readAt, nil
}

// SetIfNotExistsWithTTL sets a value if the key doesn't exist.
func (s *RateLimitStore) SetIfNotExistsWithTTL(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return s.client.SetInt64NX(ctx, s.prefix+key, value, ttl)
}

// CompareAndSwapWithTTL atomically updates a value if it matches the
// expected old value.
func (s *RateLimitStore) CompareAndSwapWithTTL(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	return s.client.CompareAndSwapInt64(ctx, s.prefix+key, old, new, ttl)
}
