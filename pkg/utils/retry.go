package utils

import (
	"context"
	"math/rand"
	"time"
)

// maxBackoff caps the delay between retries.
const maxBackoff = 30 * time.Second

// CalculateBackoff returns base * 2^attempt, capped at 30s, with up to 25% jitter either way.
// Attempt 0 or below returns 0.
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := base * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	if half := int64(backoff) / 2; half > 0 {
		backoff += time.Duration(rand.Int63n(half)) - backoff/4
	}
	return backoff
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
