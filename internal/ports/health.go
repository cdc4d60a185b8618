package ports

import (
	"context"

	"github.com/floralens/identify/internal/domain/model"
)

type HealthChecker interface {
	Health(ctx context.Context) (*model.HealthReport, error)
}
