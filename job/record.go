package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/UniQw/bullq/internal/jobdata"
	"github.com/UniQw/bullq/internal/keys"
	"github.com/UniQw/bullq/internal/scripts"
	"github.com/redis/go-redis/v9"
)

// LockTTL is the fixed lock lease duration spec.md §3 defines for
// <jobId>:lock.
const LockTTL = 5000 * time.Millisecond

// Deps is the narrow surface a Record needs: a Redis client, a queue's key
// set, and the compiled script library. It deliberately excludes anything
// that would make Record own or reach back into a Queue.
type Deps struct {
	RDB     redis.UniversalClient
	Keys    keys.Keys
	Scripts *scripts.Loader
}

// Record is a live handle on one job id, exposing the atomic Redis
// operations spec.md §4.2 describes. It carries no payload state of its
// own; FromID reads the current hash fresh on every call.
type Record[T any] struct {
	deps  Deps
	codec Codec[T]
	id    int64
}

// New returns a Record bound to the given job id.
func New[T any](deps Deps, codec Codec[T], id int64) *Record[T] {
	return &Record[T]{deps: deps, codec: codec, id: id}
}

// ID returns the bound job id.
func (r *Record[T]) ID() int64 { return r.id }

// Create serializes data and opts and writes the job hash, per spec.md
// §4.2. timestamp and delay are taken from opts when present (§6), falling
// back to now and no-delay respectively.
func (r *Record[T]) Create(ctx context.Context, data T, opts map[string]string) (*Job[T], error) {
	if opts == nil {
		opts = map[string]string{}
	}
	encoded, err := r.codec.Encode(data)
	if err != nil {
		return nil, err
	}

	ts, ok := jobdata.TimestampMs(opts)
	if !ok {
		ts = time.Now().UnixMilli()
	}
	var delay int64
	if d, ok := jobdata.DelayMs(opts); ok {
		delay = d
	}

	raw := jobdata.Raw{
		Data:      encoded,
		Opts:      opts,
		Progress:  0,
		Timestamp: ts,
		Delay:     delay,
	}
	if err := r.deps.RDB.HSet(ctx, r.deps.Keys.Job(r.id), raw.ToHash()).Err(); err != nil {
		return nil, err
	}

	return &Job[T]{
		ID:        r.id,
		Queue:     r.deps.Keys.Name,
		Data:      data,
		Opts:      opts,
		Progress:  0,
		Timestamp: ts,
		Delay:     delay,
	}, nil
}

// ErrNotFound is returned by FromID when the job hash does not exist at
// all, as distinct from one missing required fields (jobdata.ErrMalformed).
var ErrNotFound = errors.New("job: not found")

// FromID reads the job hash by field name and decodes it into a Job[T].
// Per spec.md §7.4, a hash missing data/opts/progress/timestamp is a fatal
// deserialization error (jobdata.ErrMalformed); a wholly absent hash is
// ErrNotFound.
func (r *Record[T]) FromID(ctx context.Context) (*Job[T], error) {
	h, err := r.deps.RDB.HGetAll(ctx, r.deps.Keys.Job(r.id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("job %d: %w", r.id, ErrNotFound)
	}
	raw, err := jobdata.FromHash(h)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", r.id, err)
	}
	data, err := r.codec.Decode(raw.Data)
	if err != nil {
		return nil, err
	}
	return &Job[T]{
		ID:         r.id,
		Queue:      r.deps.Keys.Name,
		Data:       data,
		Opts:       raw.Opts,
		Progress:   raw.Progress,
		Timestamp:  raw.Timestamp,
		Delay:      raw.Delay,
		Stacktrace: raw.Stacktrace,
	}, nil
}

// Progress writes the job's progress field. Callers (the dispatch loop) are
// responsible for emitting the Progress event afterward.
func (r *Record[T]) Progress(ctx context.Context, n int) error {
	return r.deps.RDB.HSet(ctx, r.deps.Keys.Job(r.id), "progress", n).Err()
}

// TakeLock sets the job's lock key to token with a 5000ms TTL. When
// renew is false, the set only takes effect if no lock currently exists
// (SET NX); when renew is true, the set is unconditional. This pins the
// open question in spec.md §9: renew always means "unconditional set",
// consistent with the lock renewer's requirement to refresh its own lease
// without first releasing it.
func (r *Record[T]) TakeLock(ctx context.Context, token string, renew bool) (bool, error) {
	lockKey := r.deps.Keys.Lock(r.id)
	if renew {
		if err := r.deps.RDB.Set(ctx, lockKey, token, LockTTL).Err(); err != nil {
			return false, err
		}
		return true, nil
	}
	ok, err := r.deps.RDB.SetNX(ctx, lockKey, token, LockTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseLock atomically deletes the lock key iff its current value equals
// token, via the compare-and-delete Lua script.
func (r *Record[T]) ReleaseLock(ctx context.Context, token string) (bool, error) {
	res, err := r.deps.Scripts.ReleaseLock.Run(ctx, r.deps.RDB, []string{r.deps.Keys.Lock(r.id)}, token).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// MoveToCompleted removes the id from active and adds it to completed, in
// a single transaction.
func (r *Record[T]) MoveToCompleted(ctx context.Context) error {
	idStr := strconv.FormatInt(r.id, 10)
	_, err := r.deps.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.deps.Keys.Active, 0, idStr)
		p.SAdd(ctx, r.deps.Keys.Completed, idStr)
		return nil
	})
	return err
}

// MoveToFailed writes the stacktrace to the job hash, then removes the id
// from active and adds it to failed, in a single transaction. The
// stacktrace write happens before the move, per spec.md §4.2.
func (r *Record[T]) MoveToFailed(ctx context.Context, cause error) error {
	idStr := strconv.FormatInt(r.id, 10)
	stacktrace := ""
	if cause != nil {
		stacktrace = cause.Error()
	}
	if err := r.deps.RDB.HSet(ctx, r.deps.Keys.Job(r.id), "stacktrace", stacktrace).Err(); err != nil {
		return err
	}
	_, err := r.deps.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.deps.Keys.Active, 0, idStr)
		p.SAdd(ctx, r.deps.Keys.Failed, idStr)
		return nil
	})
	return err
}

// MoveToDelayed adds the id to the delayed sorted set scored by
// max(0, timestampMs), evicts it from active (a worker's delay branch runs
// after the dispatch loop has already right-popped the id there), and
// publishes the timestamp on the delayed channel.
func (r *Record[T]) MoveToDelayed(ctx context.Context, timestampMs int64) error {
	if timestampMs < 0 {
		timestampMs = 0
	}
	idStr := strconv.FormatInt(r.id, 10)
	tsStr := strconv.FormatInt(timestampMs, 10)
	_, err := r.deps.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, r.deps.Keys.Active, 0, idStr)
		p.ZAdd(ctx, r.deps.Keys.Delayed, redis.Z{Score: float64(timestampMs), Member: idStr})
		p.Publish(ctx, r.deps.Keys.DelayedChannel, tsStr)
		return nil
	})
	return err
}

// Remove deletes the job hash and evicts the id from completed and failed,
// atomically. When the id is in neither completed nor failed, it is also
// evicted from wait, paused, active and delayed; it is not checked whether
// a handler is still running the job.
func (r *Record[T]) Remove(ctx context.Context) error {
	idStr := strconv.FormatInt(r.id, 10)
	k := r.deps.Keys
	_, err := r.deps.Scripts.Remove.Run(ctx, r.deps.RDB,
		[]string{k.Wait, k.Paused, k.Active, k.Delayed, k.Completed, k.Failed, k.Job(r.id)},
		idStr,
	).Result()
	return err
}

// Retry removes the id from failed and re-enqueues it on wait, honoring
// the lifo option, then publishes on the jobs channel, in a single
// transaction. It returns the number of subscribers that received the
// publish, so the caller can enforce spec.md §7.1's "at least one
// subscriber" requirement.
func (r *Record[T]) Retry(ctx context.Context, opts map[string]string) (int64, error) {
	idStr := strconv.FormatInt(r.id, 10)
	lifo := jobdata.IsLIFO(opts)
	var pub *redis.IntCmd
	_, err := r.deps.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, r.deps.Keys.Failed, idStr)
		if lifo {
			p.RPush(ctx, r.deps.Keys.Wait, idStr)
		} else {
			p.LPush(ctx, r.deps.Keys.Wait, idStr)
		}
		pub = p.Publish(ctx, r.deps.Keys.JobsChannel, idStr)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pub.Val(), nil
}

// EnqueueWait right- or left-pushes the id onto wait according to lifo and
// publishes it on the jobs channel, in a single transaction. It returns the
// number of subscribers that received the publish.
func (r *Record[T]) EnqueueWait(ctx context.Context, lifo bool) (int64, error) {
	idStr := strconv.FormatInt(r.id, 10)
	var pub *redis.IntCmd
	_, err := r.deps.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if lifo {
			p.RPush(ctx, r.deps.Keys.Wait, idStr)
		} else {
			p.LPush(ctx, r.deps.Keys.Wait, idStr)
		}
		pub = p.Publish(ctx, r.deps.Keys.JobsChannel, idStr)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pub.Val(), nil
}
