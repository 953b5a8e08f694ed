package policies

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// Domain errors for policy store operations.
var (
	ErrNotFound      = errors.New("policy version not found")
	ErrNoPolicy      = errors.New("no policy version has been written")
	ErrVersionExists = errors.New("policy version already exists")
)

// MapHTTPStatus maps policy domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoPolicy):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionExists):
		return http.StatusConflict
	case errors.Is(err, policy.ErrInvalidPolicy),
		errors.Is(err, policy.ErrInvalidVersion),
		errors.Is(err, policy.ErrInvalidCategory):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
