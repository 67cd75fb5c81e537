package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/reigh-app/reigh-api/internal/platform/logger"
	"github.com/reigh-app/reigh-api/internal/redact"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"-"` // used for logging only
	TraceID string `json:"trace_id,omitempty"`
}

// ResponseOption customizes error response behavior.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	elevateLogLevel bool
}

// WithElevatedLogLevel logs a 4xx error at WARN instead of DEBUG.
// Use it for failures operators should notice, such as rejected worker tokens.
func WithElevatedLogLevel() ResponseOption {
	return func(opts *responseOptions) {
		opts.elevateLogLevel = true
	}
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response carrying the request's trace ID.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	traceID := GetTraceID(r.Context())

	logger.FromContext(r.Context()).Debug("sending error response",
		"status_code", status,
		"message", message,
		"trace_id", traceID,
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		Code:    status,
		TraceID: traceID,
	})
}

// RespondWithErrorAndLog writes userMessage to the client and logs the
// redacted err. The raw error never reaches the response body.
//
// 5xx responses are logged at ERROR, 429 and elevated 4xx at WARN, and
// everything else at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	traceID := GetTraceID(r.Context())

	attrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	var options responseOptions
	for _, opt := range opts {
		opt(&options)
	}

	level := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusTooManyRequests:
		level = slog.LevelWarn
	case options.elevateLogLevel && status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", attrs...)

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   userMessage,
		Code:    status,
		TraceID: traceID,
	})
}
