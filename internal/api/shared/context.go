package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"
)

// ContextKey is the type of request-scoped values set by the API layer.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context.
	TraceIDKey ContextKey = "traceID"

	// WorkerIDContextKey holds the subject of a verified worker token.
	WorkerIDContextKey ContextKey = "workerID"

	// TraceIDLength is the number of random bytes in a trace ID (32 hex characters).
	TraceIDLength = 16
)

var fallbackCounter atomic.Uint32

// SetTraceID adds a freshly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SetWorkerID stores the authenticated worker's identity in the context.
func SetWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, WorkerIDContextKey, workerID)
}

// GetWorkerID returns the authenticated worker's identity, if any.
func GetWorkerID(ctx context.Context) (string, bool) {
	workerID, ok := ctx.Value(WorkerIDContextKey).(string)
	return workerID, ok && workerID != ""
}

func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)
	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

// generateFallbackTraceID combines the clock with a process-wide counter so
// IDs stay unique within the process when crypto/rand is unavailable.
func generateFallbackTraceID() string {
	id := make([]byte, TraceIDLength)
	binary.BigEndian.PutUint64(id[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint32(id[8:12], fallbackCounter.Add(1))
	binary.BigEndian.PutUint32(id[12:16], uint32(time.Now().Unix()))
	return hex.EncodeToString(id)
}
