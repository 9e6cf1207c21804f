package addonlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Default retry configuration values
const (
	DEF_MAX_RETRIES    = 4
	DEF_BASE_DELAY     = 500 * time.Millisecond
	DEF_MAX_DELAY      = 30 * time.Second
	DEF_JITTER_FACTOR  = 0.5
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryConfig bounds how often a transient download failure is retried
// and how long to back off in between.
type RetryConfig struct {
	MaxRetries    int           // maximum retry attempts per task
	BaseDelay     time.Duration // delay before the first retry
	MaxDelay      time.Duration // cap on the backoff delay
	JitterFactor  float64       // random jitter factor (0-1)
	BackoffFactor float64       // exponential backoff multiplier
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DEF_MAX_RETRIES,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		JitterFactor:  DEF_JITTER_FACTOR,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// RetryState tracks the attempts already spent on one task.
type RetryState struct {
	Attempts     int
	LastError    error
	TotalDelayed time.Duration
}

// ErrorCategory classifies errors for retry decisions.
type ErrorCategory int

const (
	ErrCategoryFatal     ErrorCategory = iota // not retryable (404, canceled)
	ErrCategoryRetryable                      // transient (EOF, timeout, reset, size mismatch)
	ErrCategoryThrottled                      // rate limiting (429, 503)
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// ClassifyError determines how a download error is handled.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	// Cancellation is the user stopping the run, never retried.
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	// A size mismatch retries like any transient failure; the part
	// file keeps whatever valid prefix was written.
	if errors.Is(err, ErrSizeMismatch) || errors.Is(err, ErrRangeNotHonored) {
		return ErrCategoryRetryable
	}

	// Dropped connections surface as EOF mid-transfer.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == 429 || statusErr.Code == 503:
			return ErrCategoryThrottled
		case statusErr.Code >= 500:
			return ErrCategoryRetryable
		default:
			return ErrCategoryFatal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCategoryRetryable
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"eof",
		"temporary failure",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryRetryable
		}
	}

	// Unknown errors are fatal to avoid retry loops on permanent
	// conditions like a full disk.
	return ErrCategoryFatal
}

// CalculateBackoff computes the delay before the next retry attempt.
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1) // random in [-1, 1]
		delay *= (1 + jitter)
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is worth making.
func (c *RetryConfig) ShouldRetry(state *RetryState, err error) bool {
	if ClassifyError(err) == ErrCategoryFatal {
		return false
	}
	return state.Attempts < c.MaxRetries
}

// WaitForRetry blocks until the backoff delay elapses or ctx is done.
func (c *RetryConfig) WaitForRetry(ctx context.Context, state *RetryState, category ErrorCategory) error {
	delay := c.CalculateBackoff(state.Attempts)
	if category == ErrCategoryThrottled {
		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		state.TotalDelayed += delay
		return nil
	}
}
