package config

import "time"

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

type (
	ServiceConfig struct {
		App              App              `json:"app"`
		SecretsStorage   SecretsStorage   `json:"secrets_storage"`
		PublicHTTPServer PublicHTTPServer `json:"public_http_server"`
		Cache            Cache            `json:"cache"`
		Lock             Lock             `json:"lock"`
		Pool             Pool             `json:"pool"`
		Identification   Identification   `json:"identification"`
		Providers        Providers        `json:"providers"`
		RateLimiting     RateLimiting     `json:"rate_limiting"`
		Logging          Logging          `json:"logging"`
		Telemetry        Telemetry        `json:"telemetry"`
	}

	App struct {
		ServiceName string      `envconfig:"APP_SERVICE_NAME" default:"identify-api" json:"service_name"`
		APIVersion  string      `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		Env         Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	SecretsStorage struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"token,omitempty"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"role_id,omitempty"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"secret_id,omitempty"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"identify-api" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    uint          `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	PublicHTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8088" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	Cache struct {
		Address       string        `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password      string        `envconfig:"CACHE_PASSWORD" default:"" json:"password,omitempty"`
		DB            uint          `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize      uint          `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns  uint          `envconfig:"CACHE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout   time.Duration `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout   time.Duration `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout  time.Duration `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout   time.Duration `envconfig:"CACHE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries    uint          `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
		DefaultExpiry time.Duration `envconfig:"CACHE_DEFAULT_EXPIRY" default:"24h" json:"default_expiry"`
	}

	// Lock configures the distributed lock guarding identification work.
	Lock struct {
		TTL           time.Duration `envconfig:"LOCK_TTL" default:"30s" json:"ttl"`
		RenewInterval time.Duration `envconfig:"LOCK_RENEW_INTERVAL" default:"10s" json:"renew_interval"`
		MaxWait       time.Duration `envconfig:"LOCK_MAX_WAIT" default:"5s" json:"max_wait"`
		PollInterval  time.Duration `envconfig:"LOCK_POLL_INTERVAL" default:"100ms" json:"poll_interval"`
	}

	// Pool configures the shared execution pool for outbound provider
	// calls. The effective size is capped per provider regardless of the
	// configured value.
	Pool struct {
		Size            uint          `envconfig:"POOL_SIZE" default:"8" json:"size"`
		ShutdownTimeout time.Duration `envconfig:"POOL_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	Identification struct {
		RequestDeadline time.Duration `envconfig:"IDENTIFY_REQUEST_DEADLINE" default:"20s" json:"request_deadline"`
		MergedCacheTTL  time.Duration `envconfig:"IDENTIFY_MERGED_CACHE_TTL" default:"6h" json:"merged_cache_ttl"`
		MaxImageBytes   int64         `envconfig:"IDENTIFY_MAX_IMAGE_BYTES" default:"10485760" json:"max_image_bytes"`
	}

	Providers struct {
		PlantID  Provider `json:"plant_id"`
		PlantNet Provider `json:"plantnet"`
	}

	// Provider holds the per-provider client settings. Both providers
	// share the same shape and are processed with per-provider env
	// prefixes (PLANT_ID_*, PLANTNET_*); the base URLs get provider
	// specific defaults in Init.
	Provider struct {
		Enabled        bool                 `envconfig:"ENABLED" default:"true" json:"enabled"`
		BaseURL        string               `envconfig:"BASE_URL" json:"base_url"`
		APIKey         string               `envconfig:"API_KEY" json:"api_key,omitempty"`
		Timeout        time.Duration        `envconfig:"TIMEOUT" default:"10s" json:"timeout"`
		RetryCount     uint                 `envconfig:"RETRY_COUNT" default:"2" json:"retry_count"`
		RetryInterval  time.Duration        `envconfig:"RETRY_INTERVAL" default:"200ms" json:"retry_interval"`
		RetryJitter    time.Duration        `envconfig:"RETRY_JITTER" default:"50ms" json:"retry_jitter"`
		CacheTTL       time.Duration        `envconfig:"CACHE_TTL" default:"24h" json:"cache_ttl"`
		CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	}

	CircuitBreakerConfig struct {
		Enabled          bool          `envconfig:"BREAKER_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"BREAKER_MAX_REQUESTS" default:"1" json:"max_requests"`
		Interval         time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s" json:"interval"`
		OpenDuration     time.Duration `envconfig:"BREAKER_OPEN_DURATION" default:"30s" json:"open_duration"`
		FailureThreshold uint          `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	RateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"10" json:"requests_per_second"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"20" json:"burst_size"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/v1/health" json:"skip_paths"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled         bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
	}

	Telemetry struct {
		Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// EnabledProviderCount reports how many providers are switched on; the
// execution pool sizes its per-provider cap from it.
func (c *ServiceConfig) EnabledProviderCount() uint {
	var count uint

	if c.Providers.PlantID.Enabled {
		count++
	}
	if c.Providers.PlantNet.Enabled {
		count++
	}

	return count
}
