package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastOpts() Options {
	return Options{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsAfterTwoFailures(t *testing.T) {
	calls := 0
	retries := 0

	opts := fastOpts()
	opts.OnRetry = func(attempt int, err error) {
		retries++
		assert.ErrorIs(t, err, errBoom)
	}

	got, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries, "OnRetry fires between attempts only")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	last := errors.New("attempt 3")
	calls := 0

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errBoom
	}, fastOpts())

	assert.ErrorIs(t, err, last, "the last error is returned")
	assert.Equal(t, 3, calls)
}

func TestDo_NoRetryAfterSuccess(t *testing.T) {
	calls := 0
	opts := fastOpts()
	opts.OnRetry = func(int, error) { t.Fatal("OnRetry must not fire on success") }

	got, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}, opts)

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := Options{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, func(ctx context.Context) (int, error) {
			return 0, errBoom
		}, opts)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoSilent_FallbackOnFailure(t *testing.T) {
	got := DoSilent(context.Background(), func(ctx context.Context) ([]string, error) {
		return nil, errBoom
	}, []string{"fallback"}, fastOpts())

	assert.Equal(t, []string{"fallback"}, got)
}

func TestDoSilent_PassesThroughSuccess(t *testing.T) {
	got := DoSilent(context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	}, -1, fastOpts())

	assert.Equal(t, 7, got)
}

func TestDelay_CappedAtMaxDelay(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 1500 * time.Millisecond}.withDefaults()

	for attempt := 1; attempt <= 6; attempt++ {
		d := delay(attempt, opts)
		assert.LessOrEqual(t, d, opts.MaxDelay)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
