package archiver

import (
	"context"
	"net/http"
	"time"

	"link-archiver/models"

	"go.uber.org/zap"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExponentialBackoff waits 2^attempt seconds, attempt counting from zero.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// RetryOnlyTooManyRequests retries 429 and nothing else.
func RetryOnlyTooManyRequests(status int) bool {
	return status == http.StatusTooManyRequests
}

// RetryAnyStatus retries every non-200 status.
func RetryAnyStatus(int) bool {
	return true
}

// AttemptFunc performs one submission. A nil error with status 200 is a
// success and archivedURL is recorded; any other status is judged by the
// policy. A non-nil error is a transport failure and is always retried.
type AttemptFunc func(ctx context.Context) (status int, archivedURL string, err error)

// RetryPolicy bounds how often and how patiently a service is retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	RetryStatus func(status int) bool
	Sleep       Sleeper
}

// Run calls attempt until it succeeds, fails with a non-retryable status or
// MaxAttempts is reached. It never returns an error: every failure collapses
// into a failed ServiceResult.
func (p RetryPolicy) Run(ctx context.Context, logger *zap.Logger, attempt AttemptFunc) models.ServiceResult {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	retryStatus := p.RetryStatus
	if retryStatus == nil {
		retryStatus = RetryOnlyTooManyRequests
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for i := 0; i < maxAttempts; i++ {
		if ctx.Err() != nil {
			return models.Failed()
		}

		status, archivedURL, err := attempt(ctx)
		switch {
		case err != nil:
			logger.Warn("Archive request failed", zap.Int("attempt", i+1), zap.Error(err))
		case status == http.StatusOK:
			return models.Succeeded(archivedURL)
		case status == http.StatusTooManyRequests && retryStatus(status):
			logger.Warn("Rate limited", zap.Int("attempt", i+1), zap.Duration("retry_in", backoff(i)))
		case retryStatus(status):
			logger.Warn("Unexpected status", zap.Int("attempt", i+1), zap.Int("status", status))
		default:
			logger.Warn("Failed to archive", zap.Int("status", status))
			return models.Failed()
		}

		if i == maxAttempts-1 {
			break
		}
		if err := sleep(ctx, backoff(i)); err != nil {
			return models.Failed()
		}
	}

	logger.Warn("Giving up after retries", zap.Int("attempts", maxAttempts))
	return models.Failed()
}
