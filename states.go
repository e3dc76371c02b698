package bullq

import (
	"context"

	"github.com/UniQw/bullq/job"
)

// State names one of the containers a job-id may sit in (spec.md §3). Use
// the exported constants instead of raw strings to avoid typos.
type State string

const (
	// StateWaiting contains ready-to-run job-ids (LIST).
	StateWaiting State = "waiting"
	// StateActive contains job-ids currently owned by some worker (LIST).
	StateActive State = "active"
	// StatePaused contains wait's contents while the queue is paused
	// (LIST).
	StatePaused State = "paused"
	// StateDelayed contains job-ids scored by earliest-run-at (ZSET).
	StateDelayed State = "delayed"
	// StateCompleted contains terminal successes (SET).
	StateCompleted State = "completed"
	// StateFailed contains terminal failures (SET).
	StateFailed State = "failed"
)

// AllStates lists every valid job state in a stable order.
var AllStates = []State{StateWaiting, StateActive, StatePaused, StateDelayed, StateCompleted, StateFailed}

// String returns the raw string value of the state.
func (s State) String() string { return string(s) }

// ParseState converts a string into a State, returning ErrUnknownState for
// unknown values.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateWaiting, StateActive, StatePaused, StateDelayed, StateCompleted, StateFailed:
		return State(s), nil
	default:
		return "", ErrUnknownState
	}
}

// GetByState dispatches to the Get* method matching st, for callers that
// hold the state as data rather than as a compile-time choice.
func (q *Queue[T]) GetByState(ctx context.Context, st State) ([]*job.Job[T], error) {
	switch st {
	case StateWaiting:
		return q.GetWaiting(ctx)
	case StateActive:
		return q.GetActive(ctx)
	case StatePaused:
		return q.loadList(ctx, q.keys.Paused)
	case StateDelayed:
		return q.GetDelayed(ctx)
	case StateCompleted:
		return q.GetCompleted(ctx)
	case StateFailed:
		return q.GetFailed(ctx)
	default:
		return nil, ErrUnknownState
	}
}
