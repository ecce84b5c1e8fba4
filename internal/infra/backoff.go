package infra

import (
	"time"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// ReconnectDelay returns the exponential backoff duration for a given retry
// count: baseDelay * 2^retry, capped at maxDelay.
func ReconnectDelay(retry int) time.Duration {
	if retry < 0 {
		return reconnectBaseDelay
	}

	// 2^30 seconds already exceeds any sane cap; avoid shift overflow.
	if retry > 30 {
		return reconnectMaxDelay
	}

	backoff := reconnectBaseDelay * time.Duration(1<<retry)
	if backoff > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return backoff
}
