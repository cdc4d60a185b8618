package queries

import (
	"context"

	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/pkg/decorator"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	IdentifyPlantQuery struct {
		Image           []byte
		IncludeDiseases bool
		CorrelationID   string
	}

	IdentifyPlantQueryHandler = decorator.QueryHandler[IdentifyPlantQuery, *model.MergedResult]

	identifyPlantQueryHandler struct {
		identifier ports.Identifier
	}
)

func NewIdentifyPlantQueryHandler(
	identifier ports.Identifier,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) IdentifyPlantQueryHandler {
	return decorator.ApplyQueryDecorators[IdentifyPlantQuery, *model.MergedResult](
		identifyPlantQueryHandler{identifier: identifier},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h identifyPlantQueryHandler) Execute(ctx context.Context, query IdentifyPlantQuery) (*model.MergedResult, error) {
	req := model.NewIdentificationRequest(
		query.Image,
		model.IdentificationOptions{IncludeDiseases: query.IncludeDiseases},
		query.CorrelationID,
	)

	return h.identifier.Identify(ctx, req)
}
