// Package async coordinates the single background eviction sweep with
// graceful shutdown.
package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Runner admits at most one in-flight operation and ties its lifetime to
// shutdown: contexts handed out by Context are cancelled when Close is
// called, and Close waits for the operation to drain.
type Runner struct {
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a Runner.
func New() *Runner {
	return &Runner{
		done: make(chan struct{}),
	}
}

// Close signals shutdown and blocks until the in-flight operation, if any,
// has finished.
func (r *Runner) Close() {
	close(r.done)
	r.wg.Wait()
}

// IsRunning reports whether an operation is currently in flight.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// TryStart claims the running slot. It returns false when an operation is
// already in flight; the caller must then not call Go.
func (r *Runner) TryStart() bool {
	return r.running.CompareAndSwap(false, true)
}

// Context returns a context cancelled by either the timeout or Close.
// The caller must call the cancel function when the operation ends.
func (r *Runner) Context(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	r.wg.Go(func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	})

	return ctx, cancel
}

// Go runs fn in a goroutine tracked for shutdown and releases the running
// slot when fn returns. Call only after a successful TryStart.
func (r *Runner) Go(fn func()) {
	r.wg.Go(func() {
		defer r.running.Store(false)
		fn()
	})
}
