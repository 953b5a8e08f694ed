package prompts

import (
	"errors"
	"net/http"
)

// Domain errors for prompt operations.
var (
	ErrNotFound          = errors.New("prompt version not found")
	ErrVersionExists     = errors.New("prompt version already exists")
	ErrInvalidStage      = errors.New("stage must be classify, extract, or suggest")
	ErrInvalidVersion    = errors.New("invalid prompt version")
	ErrEmptyInstructions = errors.New("instructions are required")
)

// MapHTTPStatus maps prompt domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrInvalidVersion):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyInstructions):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
