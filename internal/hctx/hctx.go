// Package hctx carries per-execution handler state through a context.Context
// so a running handler can report progress and a return value without the
// core needing a generic handler-execution type. This generalizes the
// teacher's internal/hctx (state-in-context) to also carry a write-through
// progress callback, since spec.md requires progress(n) to write the job
// hash and emit a Progress event immediately, not only after the handler
// returns.
package hctx

import "context"

// State holds per-execution handler-provided metadata.
type State struct {
	// Notify, if non-nil, is called synchronously by SetProgress with the
	// progress value exactly as given (no clamping). The runtime wires this to write the
	// job hash and emit the Progress event.
	Notify func(progress int)

	// Result is captured after the handler returns and carried in the
	// Completed event.
	Result any
}

type ctxKey struct{}

// WithState returns a child context carrying the given handler state.
func WithState(parent context.Context, s *State) context.Context {
	return context.WithValue(parent, ctxKey{}, s)
}

// From extracts the handler state from context if present.
func From(ctx context.Context) (*State, bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return nil, false
	}
	st, ok := v.(*State)
	return st, ok
}
