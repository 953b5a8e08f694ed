package policy

import "errors"

// Sentinel errors for policy model operations.
var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidScalar    = errors.New("value must be a string, number, or boolean")
	ErrInvalidAction    = errors.New("invalid rule action")
	ErrInvalidVersion   = errors.New("invalid policy version")
	ErrInvalidPolicy    = errors.New("invalid policy")
)
