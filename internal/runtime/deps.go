package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/internal/usecases"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/metrics"
	"github.com/floralens/identify/pkg/workerpool"
	"github.com/throttled/throttled/v2"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	infrastructureDep struct {
		publicHttpServer *http.Server
		cacheClient      *infrastructure.KeydbClient
		pool             *workerpool.Pool
		logger           logger.Logger
		metricsClient    metrics.Client
		tracerProvider   otelTrace.TracerProvider
	}

	repositories struct {
		secretsRepo    ports.SecretsRepository
		resultCache    ports.ResultCache
		lockManager    ports.LockManager
		rateLimitStore throttled.GCRAStoreCtx
	}

	servicesDep struct {
		providers     []ports.ProviderClient
		identifier    ports.Identifier
		healthChecker ports.HealthChecker
	}

	applications struct {
		webApp *usecases.WebApplication
	}

	dependencies struct {
		config       *config.ServiceConfig
		configLoader *config.Loader

		infra infrastructureDep

		repos repositories

		services servicesDep

		apps applications

		cleanupFuncs map[string]func(ctx context.Context) error
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{
		cleanupFuncs: make(map[string]func(ctx context.Context) error),
	}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}
