package bullq

import (
	"context"
	"errors"
	"strconv"

	"github.com/UniQw/bullq/internal/jobdata"
	"github.com/UniQw/bullq/internal/keys"
	"github.com/UniQw/bullq/internal/metrics"
	"github.com/UniQw/bullq/internal/pause"
	"github.com/UniQw/bullq/internal/scripts"
	"github.com/UniQw/bullq/job"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// translateJobErr maps the job package's sentinels onto this package's
// public ones, so callers only need to know about the bullq.Err* set.
func translateJobErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, job.ErrNotFound):
		return ErrJobNotFound
	case errors.Is(err, jobdata.ErrMalformed):
		return ErrMalformedJob
	default:
		return err
	}
}

// QueueConfig configures the ambient concerns of a Queue. Every field is
// optional; zero values fall back to the teacher's defaults.
type QueueConfig struct {
	// Logger receives the queue's own diagnostic messages. Defaults to
	// FmtLogger.
	Logger Logger
	// Registerer is the Prometheus registry jobs/latency/stalled counters
	// register against. Defaults to a fresh, unexported registry so
	// multiple queues in one process never collide.
	Registerer prometheus.Registerer
}

// Queue is the public façade over one named job queue: spec.md §4.9's
// add/pause/resume/count/empty/getBy* surface. It folds together the
// teacher's Client and the lifecycle-owning half of its Server, since
// spec.md draws no producer/consumer split.
type Queue[T any] struct {
	rdb     redis.UniversalClient
	keys    keys.Keys
	scripts *scripts.Loader
	codec   job.Codec[T]
	hub     *Hub
	log     Logger
	metrics *metrics.Metrics
}

// NewQueue creates a Queue bound to name, using codec to serialize T. A nil
// codec defaults to job.JSONCodec[T].
func NewQueue[T any](rdb redis.UniversalClient, name string, codec job.Codec[T], cfg QueueConfig) *Queue[T] {
	if codec == nil {
		codec = job.JSONCodec[T]{}
	}
	log := cfg.Logger
	if log == nil {
		log = NewFmtLogger()
	}
	return &Queue[T]{
		rdb:     rdb,
		keys:    keys.For(name),
		scripts: scripts.New(),
		codec:   codec,
		hub:     NewHub(),
		log:     log,
		metrics: metrics.New(cfg.Registerer, name),
	}
}

func (q *Queue[T]) deps() job.Deps {
	return job.Deps{RDB: q.rdb, Keys: q.keys, Scripts: q.scripts}
}

// Events returns the hub observers subscribe to.
func (q *Queue[T]) Events() *Hub { return q.hub }

// Add allocates a job id, writes its hash, and enrolls it onto wait (or
// onto delayed, if opts requests a delay), per spec.md §4.9. Enrolling onto
// wait requires the jobs-channel publish to reach at least one subscriber;
// with nobody listening, no worker would ever wake to process the job, so
// this returns ErrNoSubscribers instead of silently orphaning it.
func (q *Queue[T]) Add(ctx context.Context, data T, opts ...AddOption) (*job.Job[T], error) {
	o := map[string]string{}
	for _, opt := range opts {
		opt(o)
	}

	id, err := q.rdb.Incr(ctx, q.keys.ID).Result()
	if err != nil {
		return nil, err
	}

	rec := job.New[T](q.deps(), q.codec, id)
	j, err := rec.Create(ctx, data, o)
	if err != nil {
		return nil, err
	}

	if j.Delay > 0 {
		if err := rec.MoveToDelayed(ctx, j.Timestamp+j.Delay); err != nil {
			return nil, err
		}
		q.metrics.ObserveDelayed()
		q.hub.Emit(Event{Kind: EventNewJob, JobID: id})
		return j, nil
	}

	subs, err := rec.EnqueueWait(ctx, jobdata.IsLIFO(o))
	if err != nil {
		return nil, err
	}
	if subs == 0 {
		return nil, ErrNoSubscribers
	}
	q.hub.Emit(Event{Kind: EventNewJob, JobID: id})
	return j, nil
}

// Pause moves wait's contents to paused and sets meta-paused, atomically,
// broadcasting the change, per spec.md §4.7.
func (q *Queue[T]) Pause(ctx context.Context) error {
	lastID, _ := q.rdb.Get(ctx, q.keys.ID).Int64()
	return pause.Toggle(ctx, q.rdb, q.scripts, q.keys, pause.Paused, lastID)
}

// Resume moves paused's contents back onto wait and clears meta-paused,
// atomically, broadcasting the change, per spec.md §4.7.
func (q *Queue[T]) Resume(ctx context.Context) error {
	lastID, _ := q.rdb.Get(ctx, q.keys.ID).Int64()
	return pause.Toggle(ctx, q.rdb, q.scripts, q.keys, pause.Resumed, lastID)
}

// Count returns the number of runnable jobs. wait and paused are mutually
// exclusive at any moment, so their lengths are maxed rather than summed,
// plus delayed's cardinality.
func (q *Queue[T]) Count(ctx context.Context) (int64, error) {
	waitLen, err := q.rdb.LLen(ctx, q.keys.Wait).Result()
	if err != nil {
		return 0, err
	}
	pausedLen, err := q.rdb.LLen(ctx, q.keys.Paused).Result()
	if err != nil {
		return 0, err
	}
	delayedLen, err := q.rdb.ZCard(ctx, q.keys.Delayed).Result()
	if err != nil {
		return 0, err
	}
	n := waitLen
	if pausedLen > n {
		n = pausedLen
	}
	return n + delayedLen, nil
}

// Empty drains wait, paused, and delayed and deletes the job hash of every
// id they referenced, without touching completed or failed, per spec.md
// §4.9.
func (q *Queue[T]) Empty(ctx context.Context) error {
	waitIDs, err := q.rdb.LRange(ctx, q.keys.Wait, 0, -1).Result()
	if err != nil {
		return err
	}
	pausedIDs, err := q.rdb.LRange(ctx, q.keys.Paused, 0, -1).Result()
	if err != nil {
		return err
	}
	delayedIDs, err := q.rdb.ZRange(ctx, q.keys.Delayed, 0, -1).Result()
	if err != nil {
		return err
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, q.keys.Wait, q.keys.Paused, q.keys.MetaPaused, q.keys.Delayed)
		for _, ids := range [][]string{waitIDs, pausedIDs, delayedIDs} {
			for _, idStr := range ids {
				if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
					p.Del(ctx, q.keys.Job(id))
				}
			}
		}
		return nil
	})
	return err
}

// GetJob loads a single job by id.
func (q *Queue[T]) GetJob(ctx context.Context, id int64) (*job.Job[T], error) {
	j, err := job.New[T](q.deps(), q.codec, id).FromID(ctx)
	if err != nil {
		return nil, translateJobErr(err)
	}
	return j, nil
}

// GetWaiting returns every job currently in wait, in list order.
func (q *Queue[T]) GetWaiting(ctx context.Context) ([]*job.Job[T], error) {
	return q.loadList(ctx, q.keys.Wait)
}

// GetActive returns every job currently in active, in list order.
func (q *Queue[T]) GetActive(ctx context.Context) ([]*job.Job[T], error) {
	return q.loadList(ctx, q.keys.Active)
}

// GetCompleted returns every job in the (unordered) completed set.
func (q *Queue[T]) GetCompleted(ctx context.Context) ([]*job.Job[T], error) {
	return q.loadSet(ctx, q.keys.Completed)
}

// GetFailed returns every job in the (unordered) failed set.
func (q *Queue[T]) GetFailed(ctx context.Context) ([]*job.Job[T], error) {
	return q.loadSet(ctx, q.keys.Failed)
}

// GetDelayed returns every job in delayed, ordered by ascending run-at
// score.
func (q *Queue[T]) GetDelayed(ctx context.Context) ([]*job.Job[T], error) {
	ids, err := q.rdb.ZRange(ctx, q.keys.Delayed, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return q.loadIDs(ctx, ids)
}

func (q *Queue[T]) loadList(ctx context.Context, key string) ([]*job.Job[T], error) {
	ids, err := q.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return q.loadIDs(ctx, ids)
}

func (q *Queue[T]) loadSet(ctx context.Context, key string) ([]*job.Job[T], error) {
	ids, err := q.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return q.loadIDs(ctx, ids)
}

func (q *Queue[T]) loadIDs(ctx context.Context, idStrs []string) ([]*job.Job[T], error) {
	jobs := make([]*job.Job[T], 0, len(idStrs))
	for _, idStr := range idStrs {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		j, err := job.New[T](q.deps(), q.codec, id).FromID(ctx)
		if err != nil {
			return nil, translateJobErr(err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Retry removes id from failed and re-enqueues it on wait, honoring its
// original lifo option, per spec.md §4.2. Like Add, it requires the
// jobs-channel publish to reach at least one subscriber.
func (q *Queue[T]) Retry(ctx context.Context, id int64) error {
	rec := job.New[T](q.deps(), q.codec, id)
	j, err := rec.FromID(ctx)
	if err != nil {
		return translateJobErr(err)
	}
	subs, err := rec.Retry(ctx, j.Opts)
	if err != nil {
		return err
	}
	if subs == 0 {
		return ErrNoSubscribers
	}
	return nil
}
