package bullq

import (
	"context"

	"github.com/UniQw/bullq/internal/hctx"
)

// SetProgress reports handler progress (0..100 by convention, not
// enforced) for the job currently executing on ctx. It writes the job
// hash's progress field and emits a Progress event immediately, per
// spec.md §4.2. It is a no-op if ctx was not provided by the dispatch loop.
func SetProgress(ctx context.Context, p int) {
	st, ok := hctx.From(ctx)
	if !ok || st == nil || st.Notify == nil {
		return
	}
	st.Notify(p)
}

// SetResult attaches a return value to be carried in the Completed event
// once the handler returns. It is a no-op if ctx was not provided by the
// dispatch loop.
func SetResult(ctx context.Context, v any) {
	st, ok := hctx.From(ctx)
	if !ok || st == nil {
		return
	}
	st.Result = v
}
