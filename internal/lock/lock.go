// Package lock implements the lock renewer: a scoped background task that
// refreshes a job's lock on a fixed interval until cancelled, per spec.md
// §4.3. It knows nothing about jobs or Redis directly — it is handed a
// refresh closure — so it stays reusable and trivially testable.
package lock

import (
	"context"
	"time"
)

// Interval is the fixed renewal period spec.md §4.3 specifies.
const Interval = 2500 * time.Millisecond

// RefreshFunc performs one renewal attempt.
type RefreshFunc func(ctx context.Context) error

// Renewer ticks RefreshFunc on Interval until Stop is called. Stop blocks
// until the ticking goroutine has observed cancellation, so the caller can
// release the lock immediately afterward without racing a renewal that
// would resurrect an expired lease — per spec.md §4.3's "cancellation must
// be prompt and must not leave a final renewal in flight".
type Renewer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the renewer. onError, if non-nil, is called with any
// error a renewal attempt returns; renewal continues regardless.
func Start(parent context.Context, refresh RefreshFunc, onError func(error)) *Renewer {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r := &Renewer{cancel: cancel, done: done}

	go func() {
		defer close(done)
		ticker := time.NewTicker(Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := refresh(ctx); err != nil && onError != nil {
					onError(err)
				}
			}
		}
	}()

	return r
}

// Stop cancels the renewer and waits for its goroutine to exit.
func (r *Renewer) Stop() {
	r.cancel()
	<-r.done
}
