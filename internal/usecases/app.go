package usecases

import (
	"github.com/floralens/identify/internal/ports"
	"github.com/floralens/identify/internal/usecases/commands"
	"github.com/floralens/identify/internal/usecases/queries"
	"github.com/floralens/identify/pkg/logger"
	"github.com/floralens/identify/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		PurgeIdentifications commands.PurgeIdentificationsCommandHandler
	}

	Queries struct {
		IdentifyPlant     queries.IdentifyPlantQueryHandler
		FetchHealthReport queries.FetchHealthReportQueryHandler
	}

	WebApplication struct {
		Commands Commands
		Queries  Queries
	}
)

func NewWebApplication(
	identifier ports.Identifier,
	resultCache ports.ResultCache,
	healthChecker ports.HealthChecker,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *WebApplication {
	return &WebApplication{
		Commands: Commands{
			PurgeIdentifications: commands.NewPurgeIdentificationsCommandHandler(resultCache, log, metricsClient, tracerProvider),
		},
		Queries: Queries{
			IdentifyPlant:     queries.NewIdentifyPlantQueryHandler(identifier, log, metricsClient, tracerProvider),
			FetchHealthReport: queries.NewFetchHealthReportQueryHandler(healthChecker, log, metricsClient, tracerProvider),
		},
	}
}
