package learning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/suggestions"
	"github.com/JaimeStill/lodestar/pkg/handlers"
	"github.com/JaimeStill/lodestar/pkg/pagination"
	"github.com/JaimeStill/lodestar/pkg/routes"
)

// Handler provides HTTP endpoints for the learning loop.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "learning"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for learning endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/learning",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/analyses", Handler: h.ListAnalyses},
			{Method: "POST", Pattern: "/analyses", Handler: h.RunAnalysis},
			{Method: "GET", Pattern: "/analyses/{id}", Handler: h.FindAnalysis},
			{Method: "POST", Pattern: "/analyses/{id}/suggestions", Handler: h.ProposeSuggestions},
			{Method: "GET", Pattern: "/suggestions", Handler: h.ListSuggestions},
			{Method: "GET", Pattern: "/suggestions/{id}", Handler: h.FindSuggestion},
			{Method: "POST", Pattern: "/suggestions/{id}/validate", Handler: h.ValidateSuggestion},
			{Method: "POST", Pattern: "/suggestions/{id}/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/suggestions/{id}/reject", Handler: h.Reject},
			{Method: "POST", Pattern: "/validate", Handler: h.ValidateCandidate},
			{Method: "POST", Pattern: "/thresholds/check", Handler: h.CheckThresholds},
		},
	}
}

// ListAnalyses returns stored analyses, newest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.Analyses(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// RunAnalysis analyzes feedback over the requested window. An empty body
// analyzes the configured lookback window.
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var cmd AnalysisCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.sys.RunAnalysis(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, a)
}

func (h *Handler) FindAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrAnalysisNotFound)
		return
	}

	a, err := h.sys.FindAnalysis(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// ProposeSuggestions requests suggestions for an analysis and returns the
// stored pending suggestions.
func (h *Handler) ProposeSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrAnalysisNotFound)
		return
	}

	items, err := h.sys.ProposeSuggestions(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, items)
}

func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := suggestions.FiltersFromQuery(r.URL.Query())

	result, err := h.sys.Suggestions(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) FindSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, suggestions.ErrNotFound)
		return
	}

	sg, err := h.sys.FindSuggestion(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sg)
}

// ValidateSuggestion validates the policy a suggestion would produce and
// attaches the result to the suggestion.
func (h *Handler) ValidateSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, suggestions.ErrNotFound)
		return
	}

	sg, err := h.sys.ValidateSuggestion(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sg)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.sys.ApproveSuggestion)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.sys.RejectSuggestion)
}

// ValidateCandidate validates a full candidate policy against history
// without storing anything.
func (h *Handler) ValidateCandidate(w http.ResponseWriter, r *http.Request) {
	var cmd ValidateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.ValidateCandidate(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) CheckThresholds(w http.ResponseWriter, r *http.Request) {
	report, err := h.sys.CheckThresholds(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

type reviewFunc func(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand) (*suggestions.Suggestion, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, suggestions.ErrNotFound)
		return
	}

	var cmd suggestions.ReviewCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	sg, err := fn(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sg)
}
