package advisor

import "errors"

// Errors returned by model calls.
var (
	ErrNoResponse       = errors.New("model returned no choices")
	ErrInvalidResponse  = errors.New("model response does not match the expected shape")
	ErrRateLimitTimeout = errors.New("rate limit wait interrupted")
)
