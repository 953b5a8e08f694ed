package decisions

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/lodestar/internal/policies"
)

// Domain errors for decision operations.
var (
	ErrNotFound             = errors.New("decision not found")
	ErrDuplicate            = errors.New("decision already exists")
	ErrEmptyText            = errors.New("decision text is required")
	ErrReviewerRequired     = errors.New("reviewer is required")
	ErrSameCategory         = errors.New("correction matches the served category")
	ErrClassificationFailed = errors.New("classification failed")
)

// MapHTTPStatus maps decision domain errors to HTTP status codes. Policy
// store errors surfacing through Classify keep their own mapping.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrReviewerRequired),
		errors.Is(err, ErrSameCategory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrClassificationFailed):
		return http.StatusBadGateway
	}
	return policies.MapHTTPStatus(err)
}
