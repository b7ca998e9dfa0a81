package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("inventory-service", "info", &buf)

	l.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "inventory-service", entry["service"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("inventory-service", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))

	ctx = WithCorrelationID(ctx, "corr-1")
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
}

func TestFromContext_Fallback(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))

	var buf bytes.Buffer
	l := NewWithWriter("inventory-service", "info", &buf)
	ctx = NewContext(ctx, l)
	assert.Same(t, l, FromContext(ctx))
}

func TestWithContext_Enrichment(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter("inventory-service", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-9")
	ctx = WithUserID(ctx, "user-3")

	WithContext(ctx, base).Info("enriched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-9", entry["correlation_id"])
	assert.Equal(t, "user-3", entry["user_id"])
}
