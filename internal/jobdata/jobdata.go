// Package jobdata defines the wire-level representation of a job hash and
// the option-map parsing rules of the bull wire contract. Field access is
// always by name (Redis hash field), never by position, so a peer
// implementation may reorder fields freely.
package jobdata

import (
	"errors"
	"strconv"
)

// ErrMalformed is returned when a job hash is missing a required field.
var ErrMalformed = errors.New("jobdata: malformed job hash")

// Raw is the parsed form of a job hash: Data holds the caller-serialized
// payload bytes, Opts the decoded option map, and the numeric fields are
// parsed from their string forms in Redis; this package never looks inside
// Data.
type Raw struct {
	Data       []byte
	Opts       map[string]string
	Progress   int
	Timestamp  int64
	Delay      int64
	Stacktrace string
}

// ToHash renders a Raw job as the Redis HSET field map.
func (r Raw) ToHash() map[string]any {
	h := map[string]any{
		"data":      r.Data,
		"opts":      EncodeOpts(r.Opts),
		"progress":  r.Progress,
		"timestamp": r.Timestamp,
	}
	if r.Delay != 0 {
		h["delay"] = r.Delay
	}
	if r.Stacktrace != "" {
		h["stacktrace"] = r.Stacktrace
	}
	return h
}

// FromHash parses a Redis HGETALL result into a Raw job. It returns
// ErrMalformed if any of data, opts, progress, or timestamp is absent, per
// spec.md's "Malformed job hash" error kind.
func FromHash(h map[string]string) (Raw, error) {
	data, ok := h["data"]
	if !ok {
		return Raw{}, ErrMalformed
	}
	rawOpts, ok := h["opts"]
	if !ok {
		return Raw{}, ErrMalformed
	}
	progressStr, ok := h["progress"]
	if !ok {
		return Raw{}, ErrMalformed
	}
	tsStr, ok := h["timestamp"]
	if !ok {
		return Raw{}, ErrMalformed
	}

	progress, err := strconv.Atoi(progressStr)
	if err != nil {
		return Raw{}, ErrMalformed
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Raw{}, ErrMalformed
	}

	opts, err := DecodeOpts(rawOpts)
	if err != nil {
		return Raw{}, ErrMalformed
	}

	r := Raw{
		Data:      []byte(data),
		Opts:      opts,
		Progress:  progress,
		Timestamp: ts,
	}
	if d, ok := h["delay"]; ok && d != "" && d != "undefined" {
		if ms, err := strconv.ParseInt(d, 10, 64); err == nil {
			r.Delay = ms
		}
	}
	r.Stacktrace = h["stacktrace"]
	return r, nil
}

// IsLIFO reports whether the opts map requests LIFO enqueueing. Per
// spec.md §6, any value other than the literal string "true" (or absence)
// means FIFO.
func IsLIFO(opts map[string]string) bool {
	return opts["lifo"] == "true"
}

// DelayMs parses the "delay" option as float milliseconds. Absence or a
// malformed value yields (0, false).
func DelayMs(opts map[string]string) (int64, bool) {
	v, ok := opts["delay"]
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// TimestampMs parses the "timestamp" option as float ms-since-epoch.
// Absence or a malformed value yields (0, false).
func TimestampMs(opts map[string]string) (int64, bool) {
	v, ok := opts["timestamp"]
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}
