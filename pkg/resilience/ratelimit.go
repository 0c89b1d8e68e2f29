package resilience

import "errors"

// RateLimitError marks a provider 429 response. The circuit breaker
// counts only these; transient network errors are left to the retry
// policy.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}
