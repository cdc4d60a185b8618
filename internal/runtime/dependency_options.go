package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	inboundhttp "github.com/floralens/identify/internal/adapters/inbound/http"
	"github.com/floralens/identify/internal/adapters/outbound/providers"
	"github.com/floralens/identify/internal/adapters/repos"
	"github.com/floralens/identify/internal/adapters/services"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/floralens/identify/internal/usecases"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/metrics/noop"
	"github.com/floralens/identify/pkg/workerpool"
	"github.com/hashicorp/vault/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithSecretsRepository(),
		WithConfigLoader(ctx),
		WithMetrics(),
		WithTracing(),
		WithCache(),
		WithRepositories(),
		WithExecutionPool(),
		WithProviders(),
		WithIdentificationService(),
		WithApplication(),
		WithHTTPServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled {
			return nil
		}

		vaultConfig := api.DefaultConfig()
		vaultConfig.Address = d.config.SecretsStorage.Address
		vaultConfig.Timeout = d.config.SecretsStorage.Timeout

		if d.config.SecretsStorage.TLSSkipVerify {
			vaultConfig.HttpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		client, err := api.NewClient(vaultConfig)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		if d.config.SecretsStorage.Namespace != "" {
			client.SetNamespace(d.config.SecretsStorage.Namespace)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled || d.repos.secretsRepo == nil {
			return nil
		}

		loader := config.NewLoader(d.config, d.repos.secretsRepo, 0)

		version, err := loader.Load(ctx, d.repos.secretsRepo, d.config)
		if err != nil {
			return fmt.Errorf("loading secrets from Vault: %w", err)
		}

		d.configLoader = config.NewLoader(d.config, d.repos.secretsRepo, version)

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		d.infra.metricsClient = noop.NewMetricsClient()

		return nil
	}
}

func WithTracing() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Enabled || !d.config.Telemetry.Traces.Enabled {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(d.config.App, d.config.Telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.cleanupFuncs["tracer"] = shutdown

		return nil
	}
}

func WithCache() DependencyOption {
	return func(d *dependencies) error {
		d.infra.cacheClient = infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)

		d.cleanupFuncs["cache"] = func(context.Context) error {
			return d.infra.cacheClient.Close()
		}

		return nil
	}
}

func WithRepositories() DependencyOption {
	return func(d *dependencies) error {
		resultCache, err := repos.NewResultCacheRepository(d.infra.cacheClient)
		if err != nil {
			return fmt.Errorf("creating result cache repository: %w", err)
		}

		lockManager, err := repos.NewLockRepository(d.infra.cacheClient)
		if err != nil {
			return fmt.Errorf("creating lock repository: %w", err)
		}

		rateLimitStore, err := repos.NewRateLimitStore(d.infra.cacheClient)
		if err != nil {
			return fmt.Errorf("creating rate limit store: %w", err)
		}

		d.repos.resultCache = resultCache
		d.repos.lockManager = lockManager
		d.repos.rateLimitStore = rateLimitStore

		return nil
	}
}

func WithExecutionPool() DependencyOption {
	return func(d *dependencies) error {
		providerCount := d.config.EnabledProviderCount()
		if providerCount == 0 {
			return fmt.Errorf("no identification providers enabled")
		}

		d.infra.pool = workerpool.New(d.config.Pool.Size, providerCount)

		d.cleanupFuncs["execution-pool"] = func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, d.config.Pool.ShutdownTimeout)
			defer cancel()

			return d.infra.pool.Shutdown(shutdownCtx)
		}

		return nil
	}
}

func WithProviders() DependencyOption {
	return func(d *dependencies) error {
		if d.config.Providers.PlantID.Enabled {
			client := providers.NewClient(providers.PlantIDSpec(), d.config.Providers.PlantID, d.repos.resultCache, d.infra.logger)
			d.services.providers = append(d.services.providers, client)
		}

		if d.config.Providers.PlantNet.Enabled {
			client := providers.NewClient(providers.PlantNetSpec(), d.config.Providers.PlantNet, d.repos.resultCache, d.infra.logger)
			d.services.providers = append(d.services.providers, client)
		}

		return nil
	}
}

func WithIdentificationService() DependencyOption {
	return func(d *dependencies) error {
		d.services.identifier = services.NewIdentificationService(
			d.services.providers,
			d.repos.resultCache,
			d.repos.lockManager,
			d.infra.pool,
			d.config.Lock,
			d.config.Identification,
			d.infra.logger,
		)

		d.services.healthChecker = services.NewHealthService(
			d.repos.resultCache,
			d.services.providers,
			d.config.App.APIVersion,
		)

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.apps.webApp = usecases.NewWebApplication(
			d.services.identifier,
			d.repos.resultCache,
			d.services.healthChecker,
			d.infra.logger,
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		router := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:            d.apps.webApp,
			Logger:         d.infra.logger,
			RateLimitStore: d.repos.rateLimitStore,
			Config:         d.config,
		})

		handler := otelhttp.NewHandler(router, "identify-api",
			otelhttp.WithTracerProvider(d.infra.tracerProvider),
		)

		d.infra.publicHttpServer = &http.Server{
			Handler:      handler,
			ReadTimeout:  d.config.PublicHTTPServer.ReadTimeout,
			WriteTimeout: d.config.PublicHTTPServer.WriteTimeout,
			IdleTimeout:  d.config.PublicHTTPServer.IdleTimeout,
		}

		return nil
	}
}
