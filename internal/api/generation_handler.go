package api

import (
	"log/slog"
	"net/http"

	"github.com/reigh-app/reigh-api/internal/api/shared"
	"github.com/reigh-app/reigh-api/internal/domain"
)

// GenerationHandler serves the generations derived from completed tasks.
type GenerationHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(service TaskService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}

	return &GenerationHandler{
		service: service,
		logger:  logger.With(slog.String("component", "generation_handler")),
	}
}

// ListGenerations handles GET /api/generations?projectId=...&page=...&limit=...
func (h *GenerationHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	projectID, err := getQueryUUID(r, "projectId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.service.ListGenerations(r.Context(), projectID, getQueryInt(r, "page"), getQueryInt(r, "limit"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	items := page.Items
	if items == nil {
		items = []*domain.Generation{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, GenerationListResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages(),
	})
}
