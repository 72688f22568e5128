package api

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy defines exponential backoff for read requests. Creating an
// appointment is never retried by the client.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy retries a failed read twice.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:    2,
	InitialDelay:  200 * time.Millisecond,
	MaxDelay:      2 * time.Second,
	BackoffFactor: 2,
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// retryable reports whether err is worth another attempt: transport failures
// and temporary HTTP statuses.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Temporary()
	}
	return true
}
