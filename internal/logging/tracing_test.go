package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Amund211/memocache/internal/logging"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingLogHandler(t *testing.T) {
	t.Parallel()

	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	spanID := trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	spanContext := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	logOnce := func(t *testing.T, project string, withSpan bool) map[string]any {
		t.Helper()

		buf := &bytes.Buffer{}
		logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(buf, nil), project))

		ctx := t.Context()
		if withSpan {
			ctx = trace.ContextWithSpanContext(ctx, spanContext)
		}
		logger.InfoContext(ctx, "test")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		return entry
	}

	t.Run("google cloud fields", func(t *testing.T) {
		t.Parallel()

		entry := logOnce(t, "my-project", true)
		require.Equal(t, "projects/my-project/traces/0102030405060708090a0b0c0d0e0f10", entry["logging.googleapis.com/trace"])
		require.Equal(t, "0102030405060708", entry["logging.googleapis.com/spanId"])
		require.Equal(t, true, entry["logging.googleapis.com/trace_sampled"])
	})

	t.Run("plain fields", func(t *testing.T) {
		t.Parallel()

		entry := logOnce(t, "", true)
		require.Equal(t, "0102030405060708090a0b0c0d0e0f10", entry["trace_id"])
		require.Equal(t, "0102030405060708", entry["span_id"])
		require.NotContains(t, entry, "logging.googleapis.com/trace")
	})

	t.Run("no span", func(t *testing.T) {
		t.Parallel()

		entry := logOnce(t, "my-project", false)
		require.NotContains(t, entry, "logging.googleapis.com/trace")
		require.NotContains(t, entry, "trace_id")
		require.Equal(t, "test", entry["msg"])
	})
}
