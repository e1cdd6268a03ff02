package repository

import (
	"math/rand"
	"time"
)

// calculateBackoff returns exponential backoff with up to 25% jitter, capped at one second.
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 10 {
		attempt = 10
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > time.Second {
		backoff = time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}
