package providers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/floralens/identify/internal/adapters/outbound/providers"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/pkg/logger"
	"github.com/stretchr/testify/require"
)

const plantIDPayload = `{
	"suggestions": [
		{"plant_name": "Rosa canina", "probability": 0.61, "plant_details": {"common_names": ["dog rose"]}},
		{"plant_name": "Rosa rubiginosa", "probability": 0.21, "plant_details": {"common_names": []}}
	],
	"health_assessment": {"diseases": [{"name": "powdery mildew", "probability": 0.3}]}
}`

const plantNetPayload = `{
	"results": [
		{"score": 0.84, "species": {"scientificNameWithoutAuthor": "Acer palmatum", "commonNames": ["Japanese maple"]}}
	]
}`

func providerConfig(baseURL string) config.Provider {
	return config.Provider{
		Enabled:       true,
		BaseURL:       baseURL,
		APIKey:        "test-key",
		Timeout:       2 * time.Second,
		RetryCount:    0,
		RetryInterval: 10 * time.Millisecond,
		RetryJitter:   5 * time.Millisecond,
		CacheTTL:      time.Hour,
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			OpenDuration:     30 * time.Second,
			FailureThreshold: 3,
		},
	}
}

// memoryResultCache is a minimal in-memory stand-in for the KeyDB backed
// cache, scoped to raw provider results.
type memoryResultCache struct {
	mu      sync.Mutex
	entries map[string]*model.ProviderResult
}

func newMemoryResultCache() *memoryResultCache {
	return &memoryResultCache{entries: make(map[string]*model.ProviderResult)}
}

func (c *memoryResultCache) GetMerged(context.Context, string, model.IdentificationOptions) (*model.MergedResult, error) {
	return nil, nil
}

func (c *memoryResultCache) SetMerged(context.Context, string, model.IdentificationOptions, *model.MergedResult, time.Duration) error {
	return nil
}

func (c *memoryResultCache) GetProvider(_ context.Context, fingerprint string, opts model.IdentificationOptions, provider string) (*model.ProviderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[fingerprint+"|"+opts.CacheToken()+"|"+provider], nil
}

func (c *memoryResultCache) SetProvider(_ context.Context, fingerprint string, opts model.IdentificationOptions, provider string, result *model.ProviderResult, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint+"|"+opts.CacheToken()+"|"+provider] = result

	return nil
}

func (c *memoryResultCache) PurgeFingerprint(context.Context, string) (int64, error) {
	return 0, nil
}

func (c *memoryResultCache) IsHealthy(context.Context) bool {
	return true
}

func TestPlantIDIdentify(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		require.Equal(t, "/v2/identify", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(plantIDPayload))
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{IncludeDiseases: true}, "corr-1")

	result, err := client.Identify(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	require.Equal(t, "plantid", result.Provider)
	require.Len(t, result.Candidates, 2)
	require.Equal(t, "Rosa canina", result.Candidates[0].ScientificName)
	require.Equal(t, []string{"dog rose"}, result.Candidates[0].CommonNames)
	require.Equal(t, "plantid", result.Candidates[0].Provider)
	require.Len(t, result.Diseases, 1)
	require.False(t, result.RetrievedAt.IsZero())
}

func TestPlantIDIdentify_DiseasesExcludedByDefault(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(plantIDPayload))
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	result, err := client.Identify(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, result.Diseases)
}

func TestPlantNetIdentify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/identify/all", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "auto", r.FormValue("organs"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(plantNetPayload))
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantNetSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	result, err := client.Identify(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "plantnet", result.Provider)
	require.Len(t, result.Candidates, 1)
	require.Equal(t, "Acer palmatum", result.Candidates[0].ScientificName)
}

func TestIdentify_CachedResultSkipsProvider(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(plantIDPayload))
	}))
	defer server.Close()

	cache := newMemoryResultCache()
	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), cache, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	_, err := client.Identify(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	result, err := client.Identify(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())
	require.Len(t, result.Candidates, 2)
}

func TestIdentify_BreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	for i := 0; i < 3; i++ {
		_, err := client.Identify(context.Background(), req)
		require.Error(t, err)
	}

	require.Equal(t, int64(3), calls.Load())
	require.Equal(t, "open", client.BreakerState())

	// The open breaker fails fast without reaching the provider.
	_, err := client.Identify(context.Background(), req)
	require.ErrorIs(t, err, model.ErrProviderUnavailable)
	require.Equal(t, int64(3), calls.Load())
}

func TestIdentify_ImageRejectionDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("corrupt"), model.IdentificationOptions{}, "corr-1")

	for i := 0; i < 5; i++ {
		_, err := client.Identify(context.Background(), req)
		require.ErrorIs(t, err, model.ErrImageRejected)
	}

	// Every call reached the provider; the breaker stayed closed.
	require.Equal(t, int64(5), calls.Load())
	require.Equal(t, "closed", client.BreakerState())
}

func TestIdentify_PersistentRejectionTripsBreaker(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	for i := 0; i < 3; i++ {
		_, err := client.Identify(context.Background(), req)
		require.ErrorIs(t, err, model.ErrProviderRejected)
	}

	require.Equal(t, "open", client.BreakerState())
}

func TestIdentify_InvalidResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := providers.NewClient(providers.PlantIDSpec(), providerConfig(server.URL), nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	_, err := client.Identify(context.Background(), req)
	require.ErrorIs(t, err, model.ErrInvalidResponse)
}

func TestIdentify_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := providerConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond

	client := providers.NewClient(providers.PlantIDSpec(), cfg, nil, logger.NewTestLogger())
	req := model.NewIdentificationRequest([]byte("leaf"), model.IdentificationOptions{}, "corr-1")

	_, err := client.Identify(context.Background(), req)
	require.ErrorIs(t, err, model.ErrProviderTimeout)
}

func TestBreakerState_Disabled(t *testing.T) {
	t.Parallel()

	cfg := providerConfig("http://localhost:0")
	cfg.CircuitBreaker.Enabled = false

	client := providers.NewClient(providers.PlantIDSpec(), cfg, nil, logger.NewTestLogger())
	require.Equal(t, "disabled", client.BreakerState())
}
