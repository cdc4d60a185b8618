package commands

import (
	"context"

	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/pkg/decorator"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	PurgeIdentificationsCommand struct {
		Fingerprint string
	}

	PurgeIdentificationsResult struct {
		Removed int64
	}

	PurgeIdentificationsCommandHandler = decorator.CommandHandler[PurgeIdentificationsCommand, PurgeIdentificationsResult]

	purgeIdentificationsCommandHandler struct {
		cache ports.ResultCache
	}
)

func NewPurgeIdentificationsCommandHandler(
	cache ports.ResultCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) PurgeIdentificationsCommandHandler {
	return decorator.ApplyCommandDecorators[PurgeIdentificationsCommand, PurgeIdentificationsResult](
		purgeIdentificationsCommandHandler{cache: cache},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h purgeIdentificationsCommandHandler) Handle(ctx context.Context, cmd PurgeIdentificationsCommand) (PurgeIdentificationsResult, error) {
	removed, err := h.cache.PurgeFingerprint(ctx, cmd.Fingerprint)
	if err != nil {
		return PurgeIdentificationsResult{}, err
	}

	return PurgeIdentificationsResult{Removed: removed}, nil
}
