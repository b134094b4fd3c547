package locator

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// initialRetryWait is the delay before the first fetch retry. Media
	// fetches sit on the chat turn's critical path, so the first retry
	// comes quickly.
	initialRetryWait = 500 * time.Millisecond
	// maxRetryWait caps the delay between fetch retries. CDN hiccups that
	// outlast this are better surfaced as a resolution failure than waited
	// out.
	maxRetryWait = 5 * time.Second

	// retryGrowth is the multiplier applied between retries.
	retryGrowth = 2.0
	// retryJitter randomizes each delay (0.5 = up to 50%) so parallel chat
	// turns fetching the same host don't retry in lockstep.
	retryJitter = 0.5
)

// fetchBackoff computes the delay sequence for remote fetch retries.
type fetchBackoff struct {
	mu      sync.Mutex
	current time.Duration
}

func newFetchBackoff() *fetchBackoff {
	return &fetchBackoff{current: initialRetryWait}
}

// Next returns the current delay and advances to the next value.
func (b *fetchBackoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	b.current = min(time.Duration(float64(b.current)*retryGrowth), maxRetryWait)

	jitter := time.Duration(rand.Int64N(int64(float64(delay) * retryJitter))) //nolint:gosec // Non-security random for jitter
	delay += jitter

	return delay
}
