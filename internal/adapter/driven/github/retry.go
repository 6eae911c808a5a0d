package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxRetries is the number of retries after the first attempt.
const DefaultMaxRetries = 3

// Operation issues one HTTP request. It is invoked once per attempt.
type Operation func(ctx context.Context) (*http.Response, error)

// StatusError reports a retryable HTTP status that survived every retry.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Executor runs operations with exponential backoff on transient failures.
// Waits are 1s, 2s, 4s, ... without jitter.
type Executor struct {
	maxRetries int
	initial    time.Duration
	newTimer   func() backoff.Timer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoffTimer sets the factory for the timer that measures waits between
// attempts. A new timer is created for every Do call.
func WithBackoffTimer(newTimer func() backoff.Timer) ExecutorOption {
	return func(e *Executor) { e.newTimer = newTimer }
}

// NewExecutor creates an Executor with DefaultMaxRetries and a one second base wait.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		maxRetries: DefaultMaxRetries,
		initial:    time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.initial
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(e.maxRetries)), ctx)
}

// Do runs op, retrying on 408, 429, 5xx gateway statuses and transient transport
// errors. Other failures return immediately. When retries are exhausted on a
// retryable status the last response is returned together with an error so callers
// can still branch on the status code. Bodies of retried responses are drained and
// closed.
func (e *Executor) Do(ctx context.Context, op Operation) (*http.Response, error) {
	var (
		last    *http.Response
		attempt int
		timer   backoff.Timer
	)
	if e.newTimer != nil {
		timer = e.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(func() error {
		attempt++
		resp, err := op(ctx)
		last = resp

		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}

		if resp != nil && isRetryableStatus(resp.StatusCode) {
			drainAndClose(resp.Body)
			if err == nil {
				err = &StatusError{StatusCode: resp.StatusCode}
			}
			return err
		}

		if err != nil {
			if resp == nil && isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		return nil
	}, e.newBackOff(ctx), func(err error, wait time.Duration) {
		slog.Debug("retrying github request", "attempt", attempt, "wait", wait, "error", err)
	}, timer)

	return last, err
}

// isRetryableStatus reports whether an HTTP status is worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isTransient reports whether a transport error without a response may succeed on retry.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
