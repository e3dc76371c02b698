// Package job implements the job record: the value object and the
// per-job Redis operations spec.md §4.2 describes (create, fromID,
// progress, takeLock, releaseLock, moveToCompleted, moveToFailed,
// moveToDelayed, remove, retry).
//
// Per spec.md §9's design note on the circular Queue<->Job relationship,
// Record carries only a narrow Deps surface (a Redis client, a key set, and
// the script loader) rather than a back-reference to a Queue. Job is a
// plain value with no behavior of its own.
package job

// Job is the value object spec.md §3 describes: a job's full attribute set
// as seen by a caller, with Data already decoded to T.
type Job[T any] struct {
	ID         int64
	Queue      string
	Data       T
	Opts       map[string]string
	Progress   int
	Timestamp  int64
	Delay      int64
	Stacktrace string
}
