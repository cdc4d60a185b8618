package noop

import (
	"context"
	"net/http"

	"github.com/floralens/identify/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

type client struct{}

// NewMetricsClient returns a metrics client that discards everything.
func NewMetricsClient() metrics.Client {
	return client{}
}

func (client) Inc(_ context.Context, _ string, _ any, _ ...attribute.KeyValue) {}

func (client) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
}

func (client) Shutdown(_ context.Context) error {
	return nil
}
