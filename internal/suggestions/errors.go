package suggestions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Domain errors for suggestion operations.
var (
	ErrNotFound          = errors.New("suggestion not found")
	ErrDuplicate         = errors.New("suggestion already exists")
	ErrInvalidStatus     = errors.New("suggestion status does not allow this transition")
	ErrRuleNotFound      = errors.New("rule not found in latest policy")
	ErrRuleExists        = errors.New("rule id already exists in latest policy")
	ErrAttributeNotFound = errors.New("attribute not found in latest policy")
)

// Sanitization rejections. A rejected candidate is filtered, never
// applied.
var (
	ErrNewAttribute     = errors.New("new_attribute suggestions are not accepted")
	ErrUnknownType      = errors.New("unknown suggestion type")
	ErrMalformed        = errors.New("malformed suggested change")
	ErrInvalidReference = errors.New("suggested change references the policy incorrectly")
)

// ApplyError reports a suggestion that could not be merged into a policy.
type ApplyError struct {
	SuggestionID uuid.UUID
	RuleID       string
	Attribute    string
	Version      string
	Err          error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("apply suggestion %s to policy %s", e.SuggestionID, e.Version)
	if e.RuleID != "" {
		msg += fmt.Sprintf(" (rule %s)", e.RuleID)
	}
	if e.Attribute != "" {
		msg += fmt.Sprintf(" (attribute %s)", e.Attribute)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ApplyError) Unwrap() error { return e.Err }

// MapHTTPStatus maps suggestion domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrRuleNotFound),
		errors.Is(err, ErrRuleExists),
		errors.Is(err, ErrAttributeNotFound):
		return http.StatusConflict
	case errors.Is(err, ErrNewAttribute),
		errors.Is(err, ErrUnknownType),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrInvalidReference):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
