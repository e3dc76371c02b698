package bullq

import (
	"strconv"
	"time"
)

// AddOption configures the recognized, wire-compatible option map (spec.md
// §6) attached to a job at Add time. Per spec.md §9 "Dynamic options map",
// the map stays string->string on the wire; unrecognized keys are ignored
// by readers for forward compatibility. LIFO, DelayBy and AtTimestamp write
// only the recognized keys; WithOpt writes whatever key it is given.
type AddOption func(map[string]string)

// LIFO enqueues the job onto wait via right-push instead of the FIFO
// default left-push.
func LIFO() AddOption {
	return func(o map[string]string) {
		o["lifo"] = "true"
	}
}

// DelayBy schedules the job to become eligible to run after d has elapsed,
// by writing the "delay" option as float milliseconds.
func DelayBy(d time.Duration) AddOption {
	return func(o map[string]string) {
		o["delay"] = strconv.FormatFloat(float64(d.Milliseconds()), 'f', -1, 64)
	}
}

// AtTimestamp overrides the job's creation timestamp (otherwise the
// current time) by writing the "timestamp" option as float ms-since-epoch.
func AtTimestamp(t time.Time) AddOption {
	return func(o map[string]string) {
		o["timestamp"] = strconv.FormatFloat(float64(t.UnixMilli()), 'f', -1, 64)
	}
}

// WithOpt sets an arbitrary option key, for forward compatibility with
// peer-implementation options this module does not interpret.
func WithOpt(key, value string) AddOption {
	return func(o map[string]string) {
		o[key] = value
	}
}
