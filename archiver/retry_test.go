package archiver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, ExponentialBackoff(0))
	assert.Equal(t, 2*time.Second, ExponentialBackoff(1))
	assert.Equal(t, 4*time.Second, ExponentialBackoff(2))
}

func TestRetryPolicyRun(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Success on first attempt", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, Sleep: sleeper.Sleep}
		result := p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			return http.StatusOK, "https://archive.example/1", nil
		})
		assert.True(t, result.Success)
		require.NotNil(t, result.ArchivedURL)
		assert.Equal(t, "https://archive.example/1", *result.ArchivedURL)
		assert.Equal(t, 1, calls)
		assert.Empty(t, sleeper.Durations())
	})

	t.Run("429 exhausts the attempt bound", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, RetryStatus: RetryOnlyTooManyRequests, Sleep: sleeper.Sleep}
		result := p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			return http.StatusTooManyRequests, "", nil
		})
		assert.False(t, result.Success)
		assert.Nil(t, result.ArchivedURL)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Durations())
	})

	t.Run("Non-retryable status fails immediately", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, RetryStatus: RetryOnlyTooManyRequests, Sleep: sleeper.Sleep}
		result := p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			return http.StatusInternalServerError, "", nil
		})
		assert.False(t, result.Success)
		assert.Equal(t, 1, calls)
		assert.Empty(t, sleeper.Durations())
	})

	t.Run("Retry any status", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, RetryStatus: RetryAnyStatus, Sleep: sleeper.Sleep}
		result := p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			return http.StatusBadGateway, "", nil
		})
		assert.False(t, result.Success)
		assert.Equal(t, 3, calls)
	})

	t.Run("Transport error then success", func(t *testing.T) {
		sleeper := &sleepRecorder{}
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, Sleep: sleeper.Sleep}
		result := p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			if calls == 1 {
				return 0, "", errors.New("connection reset by peer")
			}
			return http.StatusOK, "https://archive.example/2", nil
		})
		assert.True(t, result.Success)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []time.Duration{time.Second}, sleeper.Durations())
	})

	t.Run("Zero attempts still tries once", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{Sleep: (&sleepRecorder{}).Sleep}
		p.Run(context.Background(), logger, func(ctx context.Context) (int, string, error) {
			calls++
			return http.StatusTooManyRequests, "", nil
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("Cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, Sleep: SleepContext}
		result := p.Run(ctx, logger, func(ctx context.Context) (int, string, error) {
			calls++
			cancel()
			return http.StatusTooManyRequests, "", nil
		})
		assert.False(t, result.Success)
		assert.Equal(t, 1, calls)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
