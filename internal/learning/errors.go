package learning

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/suggestions"
)

// Domain errors for learning loop operations.
var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrAnalysisExists   = errors.New("analysis already exists")
	ErrInvalidWindow    = errors.New("analysis window must end after it starts")
	ErrActorRequired    = errors.New("actor is required")
	ErrNoSuggester      = errors.New("no suggestion model configured")
	ErrSuggestFailed    = errors.New("suggestion model failed")
)

// MapHTTPStatus maps learning errors to HTTP status codes, deferring to
// the suggestion and policy mappings for errors raised beneath it.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAnalysisNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAnalysisExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrActorRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoSuggester):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrSuggestFailed):
		return http.StatusBadGateway
	}

	if status := suggestions.MapHTTPStatus(err); status != http.StatusInternalServerError {
		return status
	}
	return policies.MapHTTPStatus(err)
}
