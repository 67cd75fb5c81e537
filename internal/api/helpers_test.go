package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/reigh-app/reigh-api/internal/api/middleware"
	"github.com/reigh-app/reigh-api/internal/domain"
	"github.com/reigh-app/reigh-api/internal/events"
	"github.com/reigh-app/reigh-api/internal/platform/memory"
	"github.com/reigh-app/reigh-api/internal/task"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// inlineJobs runs background jobs before Submit returns so handler tests can
// observe cascades and generations immediately.
type inlineJobs struct{}

func (inlineJobs) Submit(ctx context.Context, job task.Job) error {
	return job.Run(ctx)
}

type apiFixture struct {
	hub     *events.Hub
	service *task.Service
	auth    *middleware.WorkerAuth
	router  http.Handler
}

func newAPIFixture(t *testing.T, workerSecret string) *apiFixture {
	t.Helper()

	log := setupTestLogger()
	hub := events.NewHub(16, log)
	svc := task.NewService(memory.NewTaskStore(), memory.NewGenerationStore(), hub, inlineJobs{}, log)
	auth := middleware.NewWorkerAuth(workerSecret)

	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware(log))
	r.Mount("/api/tasks", NewTaskHandler(svc, log).Routes(auth.Authenticate))
	r.Get("/api/generations", NewGenerationHandler(svc, log).ListGenerations)
	r.Handle("/ws", NewWebSocketHandler(hub, log))
	r.Handle("/health", NewHealthHandler(nil, log))

	return &apiFixture{hub: hub, service: svc, auth: auth, router: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) *domain.Task {
	t.Helper()
	var got domain.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return &got
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.NotEmpty(t, resp.TraceID, "error responses carry the trace id")
	return resp.Error
}

func createTaskBody(projectID string, taskType string, deps ...string) map[string]any {
	body := map[string]any{
		"project_id": projectID,
		"task_type":  taskType,
		"params":     map[string]any{"orchestrator_details": map[string]any{"prompt": "a lighthouse at dusk"}},
	}
	if len(deps) > 0 {
		body["dependant_on"] = deps
	}
	return body
}
