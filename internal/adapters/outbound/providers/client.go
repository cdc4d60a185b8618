package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/pkg/circuitbreaker"
	appLogger "github.com/floralens/identify/pkg/logger"
	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"
)

type (
	// Spec describes one identification backend: how to build its
	// request and how to decode its answer. The surrounding Client
	// handles everything the backends share, the breaker, the retrying
	// transport, the raw result cache, and failure classification.
	Spec struct {
		Name          string
		NewRequest    func(ctx context.Context, cfg config.Provider, req model.IdentificationRequest) (*http.Request, error)
		ParseResponse func(name string, includeDiseases bool, body []byte) (*model.ProviderResult, error)
	}

	// Client wraps a provider Spec with a circuit breaker, a retrying
	// HTTP client, and a per-provider result cache.
	Client struct {
		spec       Spec
		cfg        config.Provider
		httpClient *httpclient.Client
		breaker    *circuitbreaker.CircuitBreaker[*model.ProviderResult]
		cache      ports.ResultCache
		logger     appLogger.Logger
	}
)

// NewClient creates a provider client from its spec and configuration.
func NewClient(spec Spec, cfg config.Provider, cache ports.ResultCache, log appLogger.Logger) *Client {
	httpCli := httpclient.NewClient(
		httpclient.WithHTTPTimeout(cfg.Timeout),
		httpclient.WithRetryCount(int(cfg.RetryCount)),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(cfg.RetryInterval, cfg.RetryJitter))),
	)

	breaker := circuitbreaker.New[*model.ProviderResult](circuitbreaker.Config{
		Name:             spec.Name,
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		OpenDuration:     cfg.CircuitBreaker.OpenDuration,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		// A provider that cannot handle one particular image is not an
		// unhealthy provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, model.ErrImageRejected)
		},
		OnStateChange: func(name, from, to string) {
			log.Warn().
				Str("provider", name).
				Str("from", from).
				Str("to", to).
				Msg("provider circuit breaker state changed")
		},
	})

	return &Client{
		spec:       spec,
		cfg:        cfg,
		httpClient: httpCli,
		breaker:    breaker,
		cache:      cache,
		logger:     log,
	}
}

// Name returns the provider's stable identifier.
func (c *Client) Name() string {
	return c.spec.Name
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}

	return c.breaker.State()
}

// Identify submits the image to the provider. A cached raw result for
// the same fingerprint and options short-circuits the call entirely, so
// a fresh provider does not pay for a retried merge.
func (c *Client) Identify(ctx context.Context, req model.IdentificationRequest) (*model.ProviderResult, error) {
	if c.cache != nil {
		cached, err := c.cache.GetProvider(ctx, req.Fingerprint, req.Options, c.spec.Name)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("provider", c.spec.Name).
				Str("fingerprint", req.Fingerprint).
				Msg("provider cache lookup failed, calling provider")
		}

		if cached != nil {
			return cached, nil
		}
	}

	result, err := circuitbreaker.Execute(c.breaker, func() (*model.ProviderResult, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s circuit is open", model.ErrProviderUnavailable, c.spec.Name)
		}

		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetProvider(ctx, req.Fingerprint, req.Options, c.spec.Name, result, c.cfg.CacheTTL); err != nil {
			c.logger.Warn().
				Err(err).
				Str("provider", c.spec.Name).
				Str("fingerprint", req.Fingerprint).
				Msg("failed to cache provider result")
		}
	}

	return result, nil
}

func (c *Client) call(ctx context.Context, req model.IdentificationRequest) (*model.ProviderResult, error) {
	httpReq, err := c.spec.NewRequest(ctx, c.cfg, req)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.spec.Name, err)
	}

	startTime := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(c.spec.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", c.spec.Name, err)
	}

	if err := classifyStatus(c.spec.Name, resp.StatusCode); err != nil {
		return nil, err
	}

	result, err := c.spec.ParseResponse(c.spec.Name, req.Options.IncludeDiseases, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidResponse, c.spec.Name, err)
	}

	result.Provider = c.spec.Name
	result.LatencyMs = time.Since(startTime).Milliseconds()
	result.RetrievedAt = time.Now().UTC()

	return result, nil
}

func classifyTransportError(name string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %v", model.ErrProviderTimeout, name, err)
	}

	return fmt.Errorf("calling %s: %w", name, err)
}

// isTimeout falls back to message matching because heimdall flattens
// transport errors into strings, which hides the net.Error type from
// errors.As.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "context deadline exceeded")
}

// classifyStatus maps provider HTTP answers to the domain sentinels. The
// image-specific rejections stay out of breaker accounting; everything
// else, including the remaining 4xx family, counts as a provider fault.
func classifyStatus(name string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s answered %d", model.ErrImageRejected, name, status)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %s answered %d", model.ErrProviderRejected, name, status)
	default:
		return fmt.Errorf("%s answered %d", name, status)
	}
}
