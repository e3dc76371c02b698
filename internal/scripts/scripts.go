// Package scripts holds the Lua sources that make this queue's
// multi-key, conditional mutations atomic, along with a small loader that
// pre-caches each script's SHA on a Redis connection. Per spec.md §9
// ("Script reuse"), each script is loaded once and referenced by SHA; the
// scripts are part of the wire contract with peer implementations and must
// not be altered without a compatibility plan. The loader itself follows
// the load-once-reference-by-handle shape of Lokeyflow-bullmq-go's
// ScriptLoader.
package scripts

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// releaseLock atomically deletes a lock key iff its value equals the
// caller's token (compare-and-delete). Returns 1 if deleted, 0 otherwise.
//
// KEYS[1] = lock key
// ARGV[1] = token
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// remove deletes a job's hash and evicts its id from every container it
// might be sitting in, per spec.md §4.2: if the id is in neither completed
// nor failed, remove it from wait/paused/active/delayed first; then
// unconditionally remove from completed/failed and delete the hash.
//
// KEYS[1]=wait KEYS[2]=paused KEYS[3]=active KEYS[4]=delayed
// KEYS[5]=completed KEYS[6]=failed KEYS[7]=job hash
// ARGV[1]=job id
var remove = redis.NewScript(`
local isCompleted = redis.call('SISMEMBER', KEYS[5], ARGV[1])
local isFailed = redis.call('SISMEMBER', KEYS[6], ARGV[1])
if isCompleted == 0 and isFailed == 0 then
  redis.call('LREM', KEYS[1], 0, ARGV[1])
  redis.call('LREM', KEYS[2], 0, ARGV[1])
  redis.call('LREM', KEYS[3], 0, ARGV[1])
  redis.call('ZREM', KEYS[4], ARGV[1])
end
redis.call('SREM', KEYS[5], ARGV[1])
redis.call('SREM', KEYS[6], ARGV[1])
redis.call('DEL', KEYS[7])
return 1
`)

// pauseResume toggles a queue between wait and paused atomically with the
// pub/sub broadcast, per spec.md §4.7.
//
// KEYS[1]=source list KEYS[2]=dest list KEYS[3]=meta-paused
// KEYS[4]=paused channel KEYS[5]=jobs channel
// ARGV[1]="paused"|"resumed" ARGV[2]=value to republish on the jobs channel
var pauseResume = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('RENAME', KEYS[1], KEYS[2])
end
if ARGV[1] == 'paused' then
  redis.call('SET', KEYS[3], '1')
else
  redis.call('DEL', KEYS[3])
end
redis.call('PUBLISH', KEYS[4], ARGV[1])
redis.call('PUBLISH', KEYS[5], ARGV[2])
return 1
`)

// delayPoll inspects the earliest-due entry of the delayed sorted set and,
// if its score has elapsed, promotes it to wait: removes it from delayed,
// removes any stale copy from active, right-pushes onto wait, publishes on
// the jobs channel, and zeroes the job hash's delay field. It returns the
// next remaining minimum score so the caller can re-arm its wake timer, per
// spec.md §4.6.
//
// KEYS[1]=delayed KEYS[2]=active KEYS[3]=wait KEYS[4]=jobs channel
// ARGV[1]=wake timestamp (ms) ARGV[2]=job hash key prefix (e.g. "bull:q:")
var delayPoll = redis.NewScript(`
local items = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if #items == 0 then
  return false
end
local id = items[1]
local scoreStr = items[2]
if tonumber(scoreStr) > tonumber(ARGV[1]) then
  return {0, scoreStr}
end
redis.call('ZREM', KEYS[1], id)
redis.call('LREM', KEYS[2], 0, id)
redis.call('RPUSH', KEYS[3], id)
redis.call('PUBLISH', KEYS[4], id)
redis.call('HSET', ARGV[2] .. id, 'delay', 0)
local nxt = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if #nxt == 0 then
  return {1}
end
return {1, nxt[2]}
`)

// Loader holds the compiled scripts and pre-loads their SHAs on a
// connection so the first real call avoids a round trip for NOSCRIPT
// fallback. redis.Script.Run already performs EVALSHA-with-EVAL-fallback
// on its own, so LoadAll is an optimization, not a correctness requirement.
type Loader struct {
	ReleaseLock *redis.Script
	Remove      *redis.Script
	PauseResume *redis.Script
	DelayPoll   *redis.Script
}

// New returns a Loader referencing the package-level compiled scripts.
func New() *Loader {
	return &Loader{
		ReleaseLock: releaseLock,
		Remove:      remove,
		PauseResume: pauseResume,
		DelayPoll:   delayPoll,
	}
}

// LoadAll uploads every script to the given connection so their SHAs are
// cached server-side.
func (l *Loader) LoadAll(ctx context.Context, rdb redis.Scripter) error {
	for _, s := range []*redis.Script{l.ReleaseLock, l.Remove, l.PauseResume, l.DelayPoll} {
		if err := s.Load(ctx, rdb).Err(); err != nil {
			return err
		}
	}
	return nil
}
