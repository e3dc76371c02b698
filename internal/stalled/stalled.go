// Package stalled implements stalled-job recovery: on worker startup,
// adopt and re-process jobs left in active by a dead consumer, per
// spec.md §4.5. A job is stalled exactly when its lock has expired; trying
// to take the lock (set-if-absent) is how we detect and simultaneously
// claim it in one step.
package stalled

import (
	"context"
	"strconv"
	"time"

	"github.com/UniQw/bullq/internal/keys"
	"github.com/redis/go-redis/v9"
)

// LockTTL mirrors job.LockTTL; duplicated here so this package does not
// need to import the generic job package.
const LockTTL = 5000 * time.Millisecond

// Recover scans active once and returns the ids this process successfully
// adopted: those whose lock was free (so the prior owner is presumed dead)
// and which are not already in completed.
func Recover(ctx context.Context, rdb redis.UniversalClient, k keys.Keys, token string) ([]int64, error) {
	ids, err := rdb.LRange(ctx, k.Active, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var adopted []int64
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		ok, err := rdb.SetNX(ctx, k.Lock(id), token, LockTTL).Result()
		if err != nil || !ok {
			continue
		}
		isCompleted, err := rdb.SIsMember(ctx, k.Completed, idStr).Result()
		if err != nil {
			continue
		}
		if isCompleted {
			continue
		}
		adopted = append(adopted, id)
	}
	return adopted, nil
}
