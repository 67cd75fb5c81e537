package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/reigh-app/reigh-api/internal/api"
	"github.com/reigh-app/reigh-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	generationHandler := api.NewGenerationHandler(app.taskService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/tasks", taskHandler.Routes(app.workerAuth.Authenticate))
		r.Get("/generations", generationHandler.ListGenerations)
	})

	r.Handle("/ws", api.NewWebSocketHandler(app.hub, app.logger))

	// A nil *sql.DB must not become a non-nil Pinger.
	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	r.Handle("/health", api.NewHealthHandler(pinger, app.logger))

	return r
}
