package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"bookflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(nil))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(&HTTPError{StatusCode: http.StatusConflict}))
	assert.True(t, retryable(&HTTPError{StatusCode: http.StatusServiceUnavailable}))
	assert.True(t, retryable(errors.New("connection refused")))
}

var fastRetry = RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestReadsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"appointments":[{"id":"a1","status":"confirmed"}]}`))
	}), WithRetry(fastRetry))

	list, err := client.ListAppointments(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReadRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), WithRetry(fastRetry))

	_, err := client.ListServices(context.Background())
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadGateway, herr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWritesAndAvailabilityAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithRetry(fastRetry))

	_, err := client.CreateAppointment(context.Background(), domain.CreateAppointmentRequest{ServiceID: "s"}, "key")
	assert.Error(t, err)
	_, err = client.FetchAvailability(context.Background(), domain.AvailabilityRequest{ServiceID: "s"})
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
