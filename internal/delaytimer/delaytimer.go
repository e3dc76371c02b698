// Package delaytimer implements the single shared wake-up scheduler for
// the earliest delayed job, per spec.md §4.6. Every worker process runs one
// of these per queue; because the wake re-publishes the next minimum score on
// the delayed channel whenever delayed entries remain, every subscriber gets a chance to re-arm,
// and whichever has the nearest outstanding wake effectively serializes the
// promotion — the scheduler is coordinator-free.
package delaytimer

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/UniQw/bullq/internal/keys"
	"github.com/UniQw/bullq/internal/scripts"
	"github.com/redis/go-redis/v9"
)

const unset = int64(math.MaxInt64)

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}

// Run drives the delay timer until ctx is cancelled. It is meant to run on
// its own goroutine for the lifetime of a worker. Per spec.md §5's
// shared-resource policy, nextWakeAt and its timer handle are mutated only
// from this single goroutine.
func Run(ctx context.Context, rdb redis.UniversalClient, k keys.Keys, sc *scripts.Loader, log Logger) {
	if log == nil {
		log = noopLogger{}
	}

	sub := rdb.Subscribe(ctx, k.DelayedChannel)
	defer sub.Close()
	msgs := sub.Channel()

	nextWakeAt := unset
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	arm := func(t int64) {
		if t >= nextWakeAt {
			return
		}
		timer.Stop()
		nextWakeAt = t
		d := time.Duration(t-time.Now().UnixMilli()) * time.Millisecond
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	}

	poll := func() {
		wake := time.Now().UnixMilli()
		res, err := sc.DelayPoll.Run(ctx, rdb,
			[]string{k.Delayed, k.Active, k.Wait, k.JobsChannel},
			wake, "bull:"+k.Name+":",
		).Result()
		nextWakeAt = unset
		if err != nil && err != redis.Nil {
			log.Warnf("delaytimer: poll failed queue=%s err=%v", k.Name, err)
			return
		}
		items, ok := res.([]any)
		if !ok || len(items) < 2 {
			return
		}
		scoreStr, ok := items[1].(string)
		if !ok {
			return
		}
		nextScore, err := strconv.ParseInt(strings.SplitN(scoreStr, ".", 2)[0], 10, 64)
		if err != nil {
			return
		}
		rdb.Publish(ctx, k.DelayedChannel, strconv.FormatInt(nextScore, 10))
	}

	// Promote anything already due and arm for the current minimum score
	// before waiting on anything, so a delayed job enrolled before this
	// timer subscribed (the ordinary produce-then-start ordering) is not
	// stuck until some unrelated future publish wakes this goroutine.
	poll()

	for {
		select {
		case <-ctx.Done():
			return

		case m, ok := <-msgs:
			if !ok {
				return
			}
			t, err := strconv.ParseInt(m.Payload, 10, 64)
			if err != nil {
				continue
			}
			arm(t)

		case <-timer.C:
			poll()
		}
	}
}
