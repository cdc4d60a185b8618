package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := NewWithWriter(LogLevelInfo, JSONLoggingFormat, &buf)
	log.Info().Str("provider", "plantid").Msg("identification dispatched")

	out := buf.String()
	require.Contains(t, out, `"provider":"plantid"`)
	require.Contains(t, out, `"message":"identification dispatched"`)
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := NewWithWriter(LogLevelError, JSONLoggingFormat, &buf)
	log.Debug().Msg("should be filtered")
	require.Empty(t, buf.String())

	log.Error().Msg("should be written")
	require.Contains(t, buf.String(), "should be written")
}

func TestWithContext_CorrelationID(t *testing.T) {
	var buf bytes.Buffer

	log := NewWithWriter(LogLevelInfo, JSONLoggingFormat, &buf)

	ctx := context.WithValue(context.Background(), ContextKeyCorrelationID, "corr-123")
	ctxLogger := log.WithContext(ctx)
	ctxLogger.Info().Msg("with correlation")

	require.Contains(t, buf.String(), `"correlation_id":"corr-123"`)
}
