package services

import (
	"context"
	"runtime"
	"time"

	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/ports"
)

// HealthService builds the service health report from the cache backend
// and the provider breaker states. An open breaker or an unreachable
// cache degrades the status; it never takes the service down because
// identification still works without either.
type HealthService struct {
	cache      ports.ResultCache
	providers  []ports.ProviderClient
	apiVersion string
	startedAt  time.Time
}

func NewHealthService(cache ports.ResultCache, providers []ports.ProviderClient, apiVersion string) *HealthService {
	return &HealthService{
		cache:      cache,
		providers:  providers,
		apiVersion: apiVersion,
		startedAt:  time.Now().UTC(),
	}
}

func (s *HealthService) Health(ctx context.Context) (*model.HealthReport, error) {
	now := time.Now().UTC()
	status := model.HealthStatusOK
	checks := make(map[string]model.DependencyCheck, 1)

	cacheCheck := s.checkCache(ctx)
	checks["cache"] = cacheCheck

	if cacheCheck.Status != model.DependencyStatusUp {
		status = model.HealthStatusDegraded
	}

	breakers := make([]model.BreakerState, 0, len(s.providers))
	for _, provider := range s.providers {
		state := provider.BreakerState()
		breakers = append(breakers, model.BreakerState{
			Provider: provider.Name(),
			State:    state,
		})

		if state == "open" {
			status = model.HealthStatusDegraded
		}
	}

	uptime := now.Sub(s.startedAt)

	return &model.HealthReport{
		Status:    status,
		Timestamp: now,
		Version: model.VersionInfo{
			API:   s.apiVersion,
			Build: config.ServiceVersion,
			Go:    runtime.Version(),
		},
		Uptime: model.UptimeInfo{
			StartedAt:       s.startedAt,
			Duration:        uptime.String(),
			DurationSeconds: uint64(uptime.Seconds()),
		},
		Checks:   checks,
		Breakers: breakers,
	}, nil
}

func (s *HealthService) checkCache(ctx context.Context) model.DependencyCheck {
	if s.cache == nil {
		return model.DependencyCheck{
			Status:      model.DependencyStatusUnknown,
			Message:     "cache not configured",
			LastChecked: time.Now().UTC(),
		}
	}

	startTime := time.Now()
	healthy := s.cache.IsHealthy(ctx)
	latency := time.Since(startTime)

	check := model.DependencyCheck{
		Status:      model.DependencyStatusUp,
		LatencyMs:   uint64(latency.Milliseconds()),
		LastChecked: time.Now().UTC(),
	}

	if !healthy {
		check.Status = model.DependencyStatusDown
		check.Message = "cache ping failed"
	}

	return check
}
