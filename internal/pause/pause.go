// Package pause implements the pause/resume coordinator: a single atomic
// script that toggles a queue between wait and paused and broadcasts the
// change over pub/sub, per spec.md §4.7.
package pause

import (
	"context"
	"strconv"

	"github.com/UniQw/bullq/internal/keys"
	"github.com/UniQw/bullq/internal/scripts"
	"github.com/redis/go-redis/v9"
)

// Mode is the toggle direction published on the paused channel.
type Mode string

const (
	Paused  Mode = "paused"
	Resumed Mode = "resumed"
)

// Toggle renames the source list to the destination list, flips the
// meta-paused marker, and publishes both the mode word and lastJobID so
// any worker blocked on the dispatch loop's wait wakes and re-checks.
func Toggle(ctx context.Context, rdb redis.UniversalClient, sc *scripts.Loader, k keys.Keys, mode Mode, lastJobID int64) error {
	var src, dst string
	if mode == Paused {
		src, dst = k.Wait, k.Paused
	} else {
		src, dst = k.Paused, k.Wait
	}
	_, err := sc.PauseResume.Run(ctx, rdb,
		[]string{src, dst, k.MetaPaused, k.PausedChannel, k.JobsChannel},
		string(mode), strconv.FormatInt(lastJobID, 10),
	).Result()
	return err
}
