package ports

import (
	"context"

	"github.com/floralens/identify/internal/domain/model"
)

// ProviderClient is one external identification backend wrapped with its
// circuit breaker and result cache.
type ProviderClient interface {
	// Name returns the provider's stable identifier used in cache keys
	// and provenance metadata.
	Name() string

	// Identify submits the image and returns the provider's candidates.
	// Failures are reported through the model sentinel errors so callers
	// can classify them.
	Identify(ctx context.Context, req model.IdentificationRequest) (*model.ProviderResult, error)

	// BreakerState reports the circuit breaker state for health checks.
	BreakerState() string
}

// Identifier is the orchestrating entry point: it fans out to the
// configured providers and folds their answers into one result.
type Identifier interface {
	Identify(ctx context.Context, req model.IdentificationRequest) (*model.MergedResult, error)
}
