package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
)

var errTransient = errors.New("transient")

func newPolicy(clk *mocks.MockClock, attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: 10 * time.Millisecond, Clock: clk}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	clk := mocks.NewMockClock(time.Unix(0, 0))
	calls := 0

	got, err := Do(context.Background(), newPolicy(clk, 3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps())
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	clk := mocks.NewMockClock(time.Unix(0, 0))
	calls := 0

	got, err := Do(context.Background(), newPolicy(clk, 3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clk.Sleeps())
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	clk := mocks.NewMockClock(time.Unix(0, 0))
	calls := 0

	_, err := Do(context.Background(), newPolicy(clk, 3), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	// no wait after the final attempt
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clk.Sleeps())
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	clk := mocks.NewMockClock(time.Unix(0, 0))
	calls := 0

	_, err := Do(context.Background(), newPolicy(clk, 0), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryReportsEachWait(t *testing.T) {
	clk := mocks.NewMockClock(time.Unix(0, 0))
	var attempts []int
	p := newPolicy(clk, 4)
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		assert.Equal(t, p.Delay(attempt), delay)
		assert.ErrorIs(t, err, errTransient)
	}

	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errTransient
	})

	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// real clock with a long delay: only the cancelled context can end the wait
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	calls := 0
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelayDoubles(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(0))
}
