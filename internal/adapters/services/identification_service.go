package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/ports"
	appLogger "github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/workerpool"
)

var errResultNotReady = errors.New("identification result not ready")

// IdentificationService orchestrates an identification request: cache
// fast path, a distributed lock against duplicate computation, fan-out
// to the providers over the shared pool, and a merged result written
// back to the cache. The cache and the lock are optimizations; when
// either backend is unreachable the service degrades to computing
// directly rather than failing the request.
type IdentificationService struct {
	providers []ports.ProviderClient
	cache     ports.ResultCache
	locks     ports.LockManager
	pool      *workerpool.Pool
	lockCfg   config.Lock
	identCfg  config.Identification
	logger    appLogger.Logger
}

func NewIdentificationService(
	providers []ports.ProviderClient,
	cache ports.ResultCache,
	locks ports.LockManager,
	pool *workerpool.Pool,
	lockCfg config.Lock,
	identCfg config.Identification,
	log appLogger.Logger,
) *IdentificationService {
	return &IdentificationService{
		providers: providers,
		cache:     cache,
		locks:     locks,
		pool:      pool,
		lockCfg:   lockCfg,
		identCfg:  identCfg,
		logger:    log,
	}
}

// Identify returns the merged identification for the request's image,
// computing it at most once across concurrent callers.
func (s *IdentificationService) Identify(ctx context.Context, req model.IdentificationRequest) (*model.MergedResult, error) {
	if len(req.Image) == 0 {
		return nil, model.ErrNoImage
	}

	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", model.ErrAllProvidersFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, s.identCfg.RequestDeadline)
	defer cancel()

	if cached := s.lookupMerged(ctx, req); cached != nil {
		return cached, nil
	}

	token, acquired := s.acquireLock(ctx, req)
	if token != "" {
		defer s.releaseLock(req, token)

		stopRenewal := s.startLockRenewal(ctx, req, token)
		defer stopRenewal()
	}

	if !acquired {
		if result := s.waitForHolder(ctx, req); result != nil {
			return result, nil
		}
	}

	// The holder may have finished between the first lookup and the
	// lock acquisition.
	if cached := s.lookupMerged(ctx, req); cached != nil {
		return cached, nil
	}

	return s.computeAndStore(ctx, req)
}

func (s *IdentificationService) lookupMerged(ctx context.Context, req model.IdentificationRequest) *model.MergedResult {
	if s.cache == nil {
		return nil
	}

	cached, err := s.cache.GetMerged(ctx, req.Fingerprint, req.Options)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("fingerprint", req.Fingerprint).
			Msg("merged result lookup failed, treating as cache miss")

		return nil
	}

	return cached
}

// acquireLock returns the holder token (empty when not held) and whether
// this caller owns the computation. Lock backend failures degrade to
// computing without the stampede guard.
func (s *IdentificationService) acquireLock(ctx context.Context, req model.IdentificationRequest) (string, bool) {
	if s.locks == nil {
		return "", true
	}

	token, acquired, err := s.locks.Acquire(ctx, req.Fingerprint, req.Options, s.lockCfg.TTL)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("fingerprint", req.Fingerprint).
			Msg("lock backend unavailable, computing without lock")

		return "", true
	}

	return token, acquired
}

func (s *IdentificationService) releaseLock(req model.IdentificationRequest, token string) {
	// Release runs during unwinding; the request context may already be
	// cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	released, err := s.locks.Release(ctx, req.Fingerprint, req.Options, token)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("fingerprint", req.Fingerprint).
			Msg("failed to release identification lock")

		return
	}

	if !released {
		s.logger.Warn().
			Str("fingerprint", req.Fingerprint).
			Msg("identification lock expired before release")
	}
}

// startLockRenewal keeps the lock alive while the computation runs. The
// returned stop function is idempotent through the context cancel.
func (s *IdentificationService) startLockRenewal(ctx context.Context, req model.IdentificationRequest, token string) func() {
	renewCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(s.lockCfg.RenewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				renewed, err := s.locks.Renew(renewCtx, req.Fingerprint, req.Options, token, s.lockCfg.TTL)
				if err != nil || !renewed {
					s.logger.Warn().
						Err(err).
						Str("fingerprint", req.Fingerprint).
						Bool("renewed", renewed).
						Msg("identification lock renewal failed")

					return
				}
			}
		}
	}()

	return cancel
}

// waitForHolder polls the cache while another caller computes. A nil
// return means the bounded wait elapsed and this caller recomputes.
func (s *IdentificationService) waitForHolder(ctx context.Context, req model.IdentificationRequest) *model.MergedResult {
	if s.cache == nil {
		return nil
	}

	operation := func() (*model.MergedResult, error) {
		cached, err := s.cache.GetMerged(ctx, req.Fingerprint, req.Options)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if cached == nil {
			return nil, errResultNotReady
		}

		return cached, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.lockCfg.PollInterval)),
		backoff.WithMaxElapsedTime(s.lockCfg.MaxWait),
	)
	if err != nil {
		s.logger.Debug().
			Err(model.ErrLockWaitExpired).
			Str("fingerprint", req.Fingerprint).
			Msg("gave up waiting for in-flight identification, recomputing")

		return nil
	}

	return result
}

func (s *IdentificationService) computeAndStore(ctx context.Context, req model.IdentificationRequest) (*model.MergedResult, error) {
	attempts := s.fanOut(ctx, req)

	merged, err := model.Merge(req.Fingerprint, attempts)
	if err != nil {
		// Failures are never cached; the next caller retries against
		// live providers.
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetMerged(ctx, req.Fingerprint, req.Options, merged, s.identCfg.MergedCacheTTL); err != nil {
			s.logger.Warn().
				Err(err).
				Str("fingerprint", req.Fingerprint).
				Msg("failed to cache merged result")
		}
	}

	return merged, nil
}

// fanOut submits one task per provider to the shared pool and collects
// every outcome. Providers that cannot answer before the request
// deadline are recorded as timeouts.
func (s *IdentificationService) fanOut(ctx context.Context, req model.IdentificationRequest) []model.ProviderAttempt {
	outcomes := make(chan model.ProviderAttempt, len(s.providers))

	for _, provider := range s.providers {
		provider := provider

		err := s.pool.Submit(func() {
			result, err := provider.Identify(ctx, req)
			outcomes <- model.ProviderAttempt{Provider: provider.Name(), Result: result, Err: err}
		})
		if err != nil {
			outcomes <- model.ProviderAttempt{Provider: provider.Name(), Err: err}
		}
	}

	attempts := make([]model.ProviderAttempt, 0, len(s.providers))
	seen := make(map[string]bool, len(s.providers))

collect:
	for len(attempts) < len(s.providers) {
		select {
		case attempt := <-outcomes:
			attempts = append(attempts, attempt)
			seen[attempt.Provider] = true
		case <-ctx.Done():
			break collect
		}
	}

	for _, provider := range s.providers {
		if !seen[provider.Name()] && len(attempts) < len(s.providers) {
			attempts = append(attempts, model.ProviderAttempt{
				Provider: provider.Name(),
				Err:      fmt.Errorf("%w: request deadline elapsed", model.ErrProviderTimeout),
			})
		}
	}

	return attempts
}
