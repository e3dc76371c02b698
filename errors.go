package bullq

import "errors"

// ErrNoSubscribers is returned by Add/Retry when the publish on the jobs
// channel reaches zero subscribers. With nobody listening, no worker would
// ever wake up to process the job, so the operation fails loudly instead of
// silently enqueuing an orphan.
var ErrNoSubscribers = errors.New("bullq: publish reached no subscribers")

// ErrForeignLock is returned when releasing a lock whose current value does
// not match the caller's token (someone else now owns it).
var ErrForeignLock = errors.New("bullq: lock held by another token")

// ErrMalformedJob is returned when a job hash is missing one of its
// required fields (data, opts, progress, timestamp).
var ErrMalformedJob = errors.New("bullq: malformed job hash")

// ErrJobNotFound is returned when a job id has no corresponding hash.
var ErrJobNotFound = errors.New("bullq: job not found")

// ErrUnknownState is returned when an invalid queue state name is used.
var ErrUnknownState = errors.New("bullq: unknown state")

// ErrNoHandler is logged by Worker.Start when no handler has been bound to
// run a dispatched job; Start then returns without launching anything.
var ErrNoHandler = errors.New("bullq: no handler registered")
