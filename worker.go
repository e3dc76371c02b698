package bullq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/UniQw/bullq/internal/delaytimer"
	"github.com/UniQw/bullq/internal/hctx"
	"github.com/UniQw/bullq/internal/lock"
	"github.com/UniQw/bullq/internal/pause"
	"github.com/UniQw/bullq/internal/stalled"
	"github.com/UniQw/bullq/job"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newJobWait is the hard timeout the dispatch loop waits on the jobs
// channel before re-polling wait, per spec.md §4.4/§5.
const newJobWait = 1000 * time.Millisecond

// Handler processes one dispatched job. Its return value, if non-nil, is
// carried in the Completed event unless the handler calls SetResult with
// ctx to override it.
type Handler[T any] func(ctx context.Context, j *job.Job[T]) (any, error)

// WorkerConfig configures a Worker's run behavior.
type WorkerConfig struct {
	// ForceSequentialProcessing awaits each job before fetching the next,
	// so at most one job is in flight per Worker. When false, each job
	// runs on its own goroutine and the loop proceeds immediately to the
	// next fetch; aggregate in-flight count is unbounded (spec.md §4.4).
	ForceSequentialProcessing bool
	// Logger overrides the bound queue's logger for this worker's own
	// messages.
	Logger Logger
}

// Worker runs a dispatch loop against a Queue: pop a job from wait,
// execute the registered handler under a renewed lock, settle the outcome,
// and emit events. Grounded on the teacher's Server/Runtime pair, with the
// ticker-poll dispatch loop replaced by pub/sub-plus-timeout to match
// spec.md §4.4.
type Worker[T any] struct {
	q       *Queue[T]
	handler Handler[T]
	cfg     WorkerConfig
	log     Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker binds a handler to a queue.
func NewWorker[T any](q *Queue[T], handler Handler[T], cfg WorkerConfig) *Worker[T] {
	log := cfg.Logger
	if log == nil {
		log = q.log
	}
	return &Worker[T]{q: q, handler: handler, cfg: cfg, log: log}
}

// Start launches the worker's background tasks (delay timer, pause-channel
// listener, stalled-job recovery, dispatch loop). It is idempotent and
// non-blocking, mirroring the teacher's Server.Start.
func (w *Worker[T]) Start(parent context.Context) {
	w.mu.Lock()
	if w.started {
		w.log.Warnf("worker already started; ignoring Start()")
		w.mu.Unlock()
		return
	}
	if w.handler == nil {
		w.log.Errorf("worker: %v", ErrNoHandler)
		w.mu.Unlock()
		return
	}
	w.started = true
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.mu.Unlock()

	w.log.Infof("starting worker: queue=%s sequential=%v", w.q.keys.Name, w.cfg.ForceSequentialProcessing)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		delaytimer.Run(ctx, w.q.rdb, w.q.keys, w.q.scripts, w.log)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watchPause(ctx)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.recoverStalled(ctx)
		w.dispatchLoop(ctx)
	}()
}

// Stop cancels the worker's background tasks and dispatch loop and waits
// for everything — including any in-flight handler goroutines spawned
// under ForceSequentialProcessing=false — to finish before returning.
func (w *Worker[T]) Stop() {
	w.mu.Lock()
	if !w.started {
		w.log.Warnf("worker not started; ignoring Stop()")
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	w.mu.Unlock()

	w.log.Infof("stopping worker: queue=%s", w.q.keys.Name)
	cancel()
	w.wg.Wait()
}

// watchPause translates the paused-channel broadcast into Paused/Resumed
// hub events, per spec.md §4.7's "subscribers translate the broadcast to
// local events".
func (w *Worker[T]) watchPause(ctx context.Context) {
	sub := w.q.rdb.Subscribe(ctx, w.q.keys.PausedChannel)
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			switch pause.Mode(m.Payload) {
			case pause.Paused:
				w.q.hub.Emit(Event{Kind: EventPaused})
			case pause.Resumed:
				w.q.hub.Emit(Event{Kind: EventResumed})
			}
		}
	}
}

// recoverStalled adopts every id left in active by a dead consumer before
// the dispatch loop starts, per spec.md §4.5. Every adopted job shares one
// token, since Recover has already claimed their locks with it via
// set-if-absent.
func (w *Worker[T]) recoverStalled(ctx context.Context) {
	token := uuid.NewString()
	ids, err := stalled.Recover(ctx, w.q.rdb, w.q.keys, token)
	if err != nil {
		w.log.Errorf("worker: stalled recovery failed queue=%s err=%v", w.q.keys.Name, err)
		return
	}
	for _, id := range ids {
		w.log.Warnf("worker: adopting stalled job queue=%s id=%d", w.q.keys.Name, id)
		w.q.metrics.ObserveStalled()
		w.runOne(ctx, token, id, true)
	}
}

// dispatchLoop implements spec.md §4.4's get-next-job/run-one contract: an
// atomic right-pop-from-wait/left-push-onto-active, falling back to an
// await on the jobs channel with a hard 1000ms timeout when wait is empty.
func (w *Worker[T]) dispatchLoop(ctx context.Context) {
	sub := w.q.rdb.Subscribe(ctx, w.q.keys.JobsChannel)
	defer sub.Close()
	msgs := sub.Channel()

	for ctx.Err() == nil {
		idStr, err := w.q.rdb.RPopLPush(ctx, w.q.keys.Wait, w.q.keys.Active).Result()
		if err != nil && err != redis.Nil {
			w.log.Errorf("worker: get-next-job failed queue=%s err=%v", w.q.keys.Name, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(newJobWait):
			}
			continue
		}

		if err == redis.Nil || idStr == "" {
			w.q.hub.Emit(Event{Kind: EventEmpty})
			select {
			case <-ctx.Done():
				return
			case <-msgs:
			case <-time.After(newJobWait):
			}
			continue
		}

		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			w.log.Errorf("worker: malformed job id %q on wait queue=%s", idStr, w.q.keys.Name)
			continue
		}
		w.q.hub.Emit(Event{Kind: EventNewJob, JobID: id})

		token := uuid.NewString()
		if w.cfg.ForceSequentialProcessing {
			w.runOne(ctx, token, id, false)
			continue
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runOne(ctx, token, id, false)
		}()
	}
}

// releaseLock releases id's lock, distinguishing a network/logic error from
// finding someone else's token already in place (ErrForeignLock) — the
// latter means another process adopted it as stalled while the handler was
// still running, which is a race this module tolerates but still reports.
func (w *Worker[T]) releaseLock(ctx context.Context, rec *job.Record[T], id int64, token string) error {
	ok, err := rec.ReleaseLock(ctx, token)
	if err != nil {
		return fmt.Errorf("release lock queue=%s id=%d: %w", w.q.keys.Name, id, err)
	}
	if !ok {
		return fmt.Errorf("release lock queue=%s id=%d: %w", w.q.keys.Name, id, ErrForeignLock)
	}
	return nil
}

// runOne implements spec.md §4.4's run-one contract. acquired indicates the
// lock for id is already held under token (stalled recovery's set-if-absent
// claim); a freshly dispatched job instead takes its first lock here,
// unconditionally, which is equivalent to set-if-absent immediately after a
// right-pop since nothing else could hold the lock yet.
func (w *Worker[T]) runOne(ctx context.Context, token string, id int64, acquired bool) {
	rec := job.New[T](w.q.deps(), w.q.codec, id)
	j, err := rec.FromID(ctx)
	if err != nil {
		w.log.Errorf("worker: load job failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
		return
	}

	if j.Delay > 0 {
		if err := rec.MoveToDelayed(ctx, j.Timestamp+j.Delay); err != nil {
			w.log.Errorf("worker: move to delayed failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
		}
		w.q.metrics.ObserveDelayed()
		return
	}

	if !acquired {
		if _, err := rec.TakeLock(ctx, token, true); err != nil {
			w.log.Errorf("worker: take lock failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
			return
		}
	}

	renewer := lock.Start(ctx, func(rctx context.Context) error {
		_, err := rec.TakeLock(rctx, token, true)
		return err
	}, func(err error) {
		w.log.Warnf("worker: lock renewal failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
	})

	state := &hctx.State{
		Notify: func(p int) {
			if err := rec.Progress(ctx, p); err != nil {
				w.log.Warnf("worker: progress write failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
			}
			w.q.hub.Emit(Event{Kind: EventProgress, JobID: id, Progress: p})
		},
	}

	result, handlerErr := w.handler(hctx.WithState(ctx, state), j)
	renewer.Stop()

	if handlerErr != nil {
		if err := rec.MoveToFailed(ctx, handlerErr); err != nil {
			w.log.Errorf("worker: move to failed failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
		}
		if err := w.releaseLock(ctx, rec, id, token); err != nil {
			w.log.Warnf("worker: %v", err)
		}
		w.q.metrics.ObserveFailed(time.UnixMilli(j.Timestamp))
		w.q.hub.Emit(Event{Kind: EventFailed, JobID: id, Err: handlerErr})
		return
	}

	if state.Result != nil {
		result = state.Result
	}
	if err := rec.MoveToCompleted(ctx); err != nil {
		w.log.Errorf("worker: move to completed failed queue=%s id=%d err=%v", w.q.keys.Name, id, err)
	}
	if err := w.releaseLock(ctx, rec, id, token); err != nil {
		w.log.Warnf("worker: %v", err)
	}
	w.q.metrics.ObserveCompleted(time.UnixMilli(j.Timestamp))
	w.q.hub.Emit(Event{Kind: EventCompleted, JobID: id, Return: result})
}
