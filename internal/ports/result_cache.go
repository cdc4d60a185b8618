package ports

import (
	"context"
	"time"

	"github.com/floralens/identify/internal/domain/model"
)

// ResultCache stores identification results keyed by image fingerprint
// and request options. Merged results and raw per-provider results live
// in separate scopes so a provider cache entry can outlive the merged
// one.
type ResultCache interface {
	// GetMerged retrieves a cached merged result.
	// Returns nil, nil if the key does not exist.
	GetMerged(ctx context.Context, fingerprint string, opts model.IdentificationOptions) (*model.MergedResult, error)

	// SetMerged stores a merged result with the given TTL.
	SetMerged(ctx context.Context, fingerprint string, opts model.IdentificationOptions, result *model.MergedResult, ttl time.Duration) error

	// GetProvider retrieves a cached raw provider result.
	// Returns nil, nil if the key does not exist.
	GetProvider(ctx context.Context, fingerprint string, opts model.IdentificationOptions, provider string) (*model.ProviderResult, error)

	// SetProvider stores a raw provider result with the given TTL.
	SetProvider(ctx context.Context, fingerprint string, opts model.IdentificationOptions, provider string, result *model.ProviderResult, ttl time.Duration) error

	// PurgeFingerprint removes every cached entry for a fingerprint
	// across all option and provider scopes. Returns the number of
	// removed entries.
	PurgeFingerprint(ctx context.Context, fingerprint string) (int64, error)

	// IsHealthy checks if the cache is available.
	IsHealthy(ctx context.Context) bool
}
