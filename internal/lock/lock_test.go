package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRenewsUntilStopped(t *testing.T) {
	const wantTicks = 2
	var calls int
	done := make(chan struct{})
	r := Start(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == wantTicks {
			close(done)
		}
		return nil
	}, nil)

	select {
	case <-done:
	case <-time.After(wantTicks*Interval + 2*time.Second):
		t.Fatal("renewal did not tick enough times in time")
	}
	r.Stop()
	assert.GreaterOrEqual(t, calls, wantTicks)
}

func TestStopReturnsPromptly(t *testing.T) {
	r := Start(context.Background(), func(ctx context.Context) error {
		return nil
	}, nil)

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestOnErrorInvokedOnRenewalFailure(t *testing.T) {
	errCh := make(chan error, 1)
	r := Start(context.Background(), func(ctx context.Context) error {
		return assertErr
	}, func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	select {
	case err := <-errCh:
		require.Equal(t, assertErr, err)
	case <-time.After(Interval + 2*time.Second):
		t.Fatal("onError not invoked")
	}
	r.Stop()
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "renewal failed" }
