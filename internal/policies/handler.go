package policies

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/lodestar/pkg/handlers"
	"github.com/JaimeStill/lodestar/pkg/routes"
)

// Handler provides HTTP endpoints for policy versions.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "policies"),
	}
}

// Routes returns the route group definition for policy endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/policies",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Versions},
			{Method: "GET", Pattern: "/latest", Handler: h.Latest},
			{Method: "GET", Pattern: "/{version}", Handler: h.Find},
			{Method: "POST", Pattern: "/evaluate", Handler: h.Evaluate},
		},
	}
}

// Versions returns the written policy versions, highest first.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.sys.Versions(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, versions)
}

// Latest returns the highest policy version.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	p, err := h.sys.Latest(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Find returns the policy identified by the version path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	p, err := h.sys.Find(r.Context(), r.PathValue("version"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Evaluate runs an EvaluateCommand JSON body through the evaluator without
// persisting anything and returns the evaluation trace.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var cmd EvaluateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Evaluate(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
