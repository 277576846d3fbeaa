// Package reliability classifies retryable provider failures and computes
// backoff for the websocket dial loops in the STT and TTS stages.
package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes returned by a
// provider handshake.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration for the
// given zero-based attempt.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
