package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32)

	// parent context is untouched
	assert.Empty(t, GetTraceID(ctx))
}

func TestGetTraceIDWithInvalidContextValue(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]struct{}, iterations)
	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, iterations)
}

func TestFallbackTraceIDUniqueness(t *testing.T) {
	const iterations = 100
	seen := make(map[string]struct{}, iterations)
	for i := 0; i < iterations; i++ {
		id := generateFallbackTraceID()
		require.Len(t, id, 32)
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, iterations, "counter keeps fallback IDs unique without sleeping")
}

func TestWorkerID(t *testing.T) {
	_, ok := GetWorkerID(context.Background())
	assert.False(t, ok)

	_, ok = GetWorkerID(SetWorkerID(context.Background(), ""))
	assert.False(t, ok, "empty subject is treated as missing")

	id, ok := GetWorkerID(SetWorkerID(context.Background(), "gpu-worker-7"))
	assert.True(t, ok)
	assert.Equal(t, "gpu-worker-7", id)
}
