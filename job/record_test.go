package job

import (
	"context"
	"errors"
	"testing"

	"github.com/UniQw/bullq/internal/jobdata"
	"github.com/UniQw/bullq/internal/keys"
	"github.com/UniQw/bullq/internal/scripts"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return Deps{RDB: rdb, Keys: keys.For("q"), Scripts: scripts.New()}
}

func TestCreateAndFromIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)

	created, err := rec.Create(ctx, payload{Value: "bert"}, map[string]string{"lifo": "true"})
	require.NoError(t, err)
	assert.Equal(t, payload{Value: "bert"}, created.Data)

	got, err := rec.FromID(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload{Value: "bert"}, got.Data)
	assert.Equal(t, created.Timestamp, got.Timestamp)
	assert.Equal(t, "true", got.Opts["lifo"])
	assert.Equal(t, 0, got.Progress)
}

func TestFromIDOnMissingHashIsNotFound(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 99)

	_, err := rec.FromID(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromIDOnIncompleteHashIsMalformed(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	require.NoError(t, deps.RDB.HSet(ctx, deps.Keys.Job(5), "data", "{}").Err())

	rec := New[payload](deps, JSONCodec[payload]{}, 5)
	_, err := rec.FromID(ctx)
	assert.ErrorIs(t, err, jobdata.ErrMalformed)
}

func TestTakeLockSetNXThenRenew(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)

	ok, err := rec.TakeLock(ctx, "tok-a", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rec.TakeLock(ctx, "tok-b", false)
	require.NoError(t, err)
	assert.False(t, ok, "SetNX must not clobber an existing lock")

	ok, err = rec.TakeLock(ctx, "tok-b", true)
	require.NoError(t, err)
	assert.True(t, ok, "renew=true must unconditionally overwrite")
}

func TestReleaseLockOnlyDeletesMatchingToken(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)

	_, err := rec.TakeLock(ctx, "tok-a", false)
	require.NoError(t, err)

	ok, err := rec.ReleaseLock(ctx, "tok-wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rec.ReleaseLock(ctx, "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMoveToCompletedAndMoveToFailed(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)
	_, err := rec.Create(ctx, payload{Value: "x"}, nil)
	require.NoError(t, err)
	require.NoError(t, deps.RDB.RPush(ctx, deps.Keys.Active, "1").Err())

	require.NoError(t, rec.MoveToCompleted(ctx))
	assert.Equal(t, int64(0), deps.RDB.LLen(ctx, deps.Keys.Active).Val())
	assert.True(t, deps.RDB.SIsMember(ctx, deps.Keys.Completed, "1").Val())

	rec2 := New[payload](deps, JSONCodec[payload]{}, 2)
	_, err = rec2.Create(ctx, payload{Value: "y"}, nil)
	require.NoError(t, err)
	require.NoError(t, deps.RDB.RPush(ctx, deps.Keys.Active, "2").Err())

	require.NoError(t, rec2.MoveToFailed(ctx, errors.New("boom")))
	assert.True(t, deps.RDB.SIsMember(ctx, deps.Keys.Failed, "2").Val())
	j, err := rec2.FromID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "boom", j.Stacktrace)
}

func TestMoveToDelayedScoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)

	sub := deps.RDB.Subscribe(ctx, deps.Keys.DelayedChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, rec.MoveToDelayed(ctx, 5000))
	score, err := deps.RDB.ZScore(ctx, deps.Keys.Delayed, "1").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(5000), score)

	msg := <-sub.Channel()
	assert.Equal(t, "5000", msg.Payload)
}

func TestMoveToDelayedEvictsFromActive(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)

	require.NoError(t, deps.RDB.LPush(ctx, deps.Keys.Active, "1").Err())

	require.NoError(t, rec.MoveToDelayed(ctx, 5000))

	assert.Equal(t, int64(0), deps.RDB.LLen(ctx, deps.Keys.Active).Val())
	score, err := deps.RDB.ZScore(ctx, deps.Keys.Delayed, "1").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(5000), score)
}

func TestRemoveDeletesHashAndEvicts(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)
	_, err := rec.Create(ctx, payload{Value: "x"}, nil)
	require.NoError(t, err)
	require.NoError(t, deps.RDB.RPush(ctx, deps.Keys.Wait, "1").Err())

	require.NoError(t, rec.Remove(ctx))
	assert.Equal(t, int64(0), deps.RDB.Exists(ctx, deps.Keys.Job(1)).Val())
	assert.Equal(t, int64(0), deps.RDB.LLen(ctx, deps.Keys.Wait).Val())
}

func TestRetryMovesFailedToWaitAndPublishes(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)
	rec := New[payload](deps, JSONCodec[payload]{}, 1)
	_, err := rec.Create(ctx, payload{Value: "x"}, nil)
	require.NoError(t, err)
	require.NoError(t, deps.RDB.SAdd(ctx, deps.Keys.Failed, "1").Err())

	sub := deps.RDB.Subscribe(ctx, deps.Keys.JobsChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	subs, err := rec.Retry(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), subs)
	assert.False(t, deps.RDB.SIsMember(ctx, deps.Keys.Failed, "1").Val())
	assert.Equal(t, []string{"1"}, deps.RDB.LRange(ctx, deps.Keys.Wait, 0, -1).Val())
}

func TestEnqueueWaitHonorsLIFO(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(t)

	sub := deps.RDB.Subscribe(ctx, deps.Keys.JobsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	for i := int64(1); i <= 3; i++ {
		rec := New[payload](deps, JSONCodec[payload]{}, i)
		subs, err := rec.EnqueueWait(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), subs)
	}

	assert.Equal(t, []string{"1", "2", "3"}, deps.RDB.LRange(ctx, deps.Keys.Wait, 0, -1).Val())

	// getNextJob always right-pops; with lifo right-pushing, the most
	// recently enqueued id comes out first.
	popped, err := deps.RDB.RPop(ctx, deps.Keys.Wait).Result()
	require.NoError(t, err)
	assert.Equal(t, "3", popped)
}
