// Package httpclient holds the retrying multipart clients that talk to the
// storage upload endpoint and the remote render service.
package httpclient

import (
	"context"
	"fmt"
	"time"

	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/logger"
	"template-service/internal/common/metrics"

	"github.com/go-resty/resty/v2"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const unreadableBody = "<unreadable response body>"

// bodyUnreadable reports whether the server answered with a status line but
// its body could not be read.
func bodyUnreadable(resp *resty.Response, err error) bool {
	return err != nil && resp != nil && resp.RawResponse != nil
}

// unreadableMessage describes a response whose body was lost, in the same
// wording the clients use for a readable failure.
func unreadableMessage(failed string, resp *resty.Response) string {
	if resp.IsSuccess() {
		return failed + ": response body could not be read"
	}
	return fmt.Sprintf("%s with status %d", failed, resp.StatusCode())
}

// RetryPolicy bounds one client's retry loop.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
	Timeout     time.Duration
}

// delayAfter returns the wait before the attempt following attempt n
// (1-based). The schedule is capped at its last entry.
func (p RetryPolicy) delayAfter(n int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := n - 1
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// Option customizes a client.
type Option func(*base)

// WithSleep replaces the backoff sleeper, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(b *base) { b.sleep = fn }
}

// WithRestyClient replaces the underlying resty client.
func WithRestyClient(rc *resty.Client) Option {
	return func(b *base) { b.http = rc }
}

type base struct {
	name   string
	policy RetryPolicy
	http   *resty.Client
	sleep  SleepFunc
	logger logger.Logger
}

func newBase(name string, policy RetryPolicy, log logger.Logger, opts ...Option) base {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	b := base{
		name:   name,
		policy: policy,
		sleep:  sleepContext,
		logger: log.WithFields(map[string]interface{}{"client": name}),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.http == nil {
		b.http = resty.New().SetLogger(restyLogger{log: b.logger})
	}
	return b
}

// withRetry runs fn up to MaxAttempts times, each under its own timeout
// derived from ctx. It stops early on a non-retryable error or when ctx is
// done, and returns the last attempt's error.
func withRetry[T any](ctx context.Context, b *base, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= b.policy.MaxAttempts; attempt++ {
		var (
			attemptCtx context.Context
			cancel     context.CancelFunc
		)
		if b.policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, b.policy.Timeout)
		} else {
			attemptCtx, cancel = context.WithCancel(ctx)
		}
		result, err := fn(attemptCtx, attempt)
		cancel()

		if err == nil {
			metrics.RetryAttempts.WithLabelValues(b.name, "success").Inc()
			if attempt > 1 {
				b.logger.Info("request succeeded after retry", map[string]interface{}{
					"attempt":     attempt,
					"maxAttempts": b.policy.MaxAttempts,
				})
			}
			return result, nil
		}
		lastErr = err

		willRetry := attempt < b.policy.MaxAttempts && ctx.Err() == nil && apperrors.IsRetryable(err)
		delay := b.policy.delayAfter(attempt)

		fields := map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": b.policy.MaxAttempts,
			"willRetry":   willRetry,
			"error":       err,
		}
		if willRetry {
			fields["nextDelay"] = delay.String()
			metrics.RetryAttempts.WithLabelValues(b.name, "retry").Inc()
			b.logger.Warn("attempt failed", fields)
		} else {
			metrics.RetryAttempts.WithLabelValues(b.name, "failed").Inc()
			b.logger.Error("attempt failed", fields)
			break
		}

		if err := b.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s retry aborted: %w: %w", b.name, err, lastErr)
		}
	}

	return zero, lastErr
}

// restyLogger routes resty's internal warnings into the service logger.
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), nil)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), nil)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), nil)
}
