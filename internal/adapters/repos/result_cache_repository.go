package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/redis/go-redis/v9"
)

const (
	// schemaVersion is baked into every cache key. Bumping it after a
	// result format change orphans stale entries instead of decoding
	// them incorrectly.
	schemaVersion = "v1"

	scopeMerged = "merged"

	purgeScanBatch = 100
)

// ResultCacheRepository stores identification results in KeyDB. Keys
// follow the fingerprint|options|schema|scope layout so merged results,
// raw provider results, and locks for the same image stay distinct yet
// purgeable with a single pattern.
type ResultCacheRepository struct {
	client *infrastructure.KeydbClient
}

// NewResultCacheRepository creates a new result cache repository.
func NewResultCacheRepository(client *infrastructure.KeydbClient) (*ResultCacheRepository, error) {
	return &ResultCacheRepository{
		client: client,
	}, nil
}

// CacheKey builds the canonical cache key for a fingerprint, options
// token, and scope.
func CacheKey(fingerprint string, opts model.IdentificationOptions, scope string) string {
	return strings.Join([]string{fingerprint, opts.CacheToken(), schemaVersion, scope}, "|")
}

// GetMerged retrieves a cached merged result.
func (r *ResultCacheRepository) GetMerged(ctx context.Context, fingerprint string, opts model.IdentificationOptions) (*model.MergedResult, error) {
	data, err := r.client.Get(ctx, CacheKey(fingerprint, opts, scopeMerged))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting merged result: %w", err)
	}

	var result model.MergedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling merged result: %w", err)
	}

	return &result, nil
}

// SetMerged stores a merged result with the given TTL.
func (r *ResultCacheRepository) SetMerged(ctx context.Context, fingerprint string, opts model.IdentificationOptions, result *model.MergedResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling merged result: %w", err)
	}

	if err := r.client.Set(ctx, CacheKey(fingerprint, opts, scopeMerged), data, ttl); err != nil {
		return fmt.Errorf("setting merged result: %w", err)
	}

	return nil
}

// GetProvider retrieves a cached raw provider result.
func (r *ResultCacheRepository) GetProvider(ctx context.Context, fingerprint string, opts model.IdentificationOptions, provider string) (*model.ProviderResult, error) {
	data, err := r.client.Get(ctx, CacheKey(fingerprint, opts, provider))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting provider result: %w", err)
	}

	var result model.ProviderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling provider result: %w", err)
	}

	return &result, nil
}

// SetProvider stores a raw provider result with the given TTL.
func (r *ResultCacheRepository) SetProvider(ctx context.Context, fingerprint string, opts model.IdentificationOptions, provider string, result *model.ProviderResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling provider result: %w", err)
	}

	if err := r.client.Set(ctx, CacheKey(fingerprint, opts, provider), data, ttl); err != nil {
		return fmt.Errorf("setting provider result: %w", err)
	}

	return nil
}

// PurgeFingerprint removes every cached entry for a fingerprint across
// all option and provider scopes. Lock keys are skipped so an in-flight
// computation keeps its guard.
func (r *ResultCacheRepository) PurgeFingerprint(ctx context.Context, fingerprint string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)

	pattern := fingerprint + "|*"

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, purgeScanBatch)
		if err != nil {
			return removed, fmt.Errorf("purging fingerprint: %w", err)
		}

		for _, key := range keys {
			if strings.HasSuffix(key, "|"+scopeLock) {
				continue
			}

			if err := r.client.Delete(ctx, key); err != nil {
				return removed, fmt.Errorf("purging fingerprint: %w", err)
			}
			removed++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// IsHealthy checks if the cache is available.
func (r *ResultCacheRepository) IsHealthy(ctx context.Context) bool {
	return r.client.IsHealthy(ctx)
}
