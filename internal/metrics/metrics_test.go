package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	before := testutil.ToFloat64(availabilityRequests.WithLabelValues(OutcomeStale))
	IncAvailability(OutcomeStale)
	assert.Equal(t, before+1, testutil.ToFloat64(availabilityRequests.WithLabelValues(OutcomeStale)))

	before = testutil.ToFloat64(wizardTransitions.WithLabelValues("select_service", "select_availability"))
	IncTransition("select_service", "select_availability")
	assert.Equal(t, before+1, testutil.ToFloat64(wizardTransitions.WithLabelValues("select_service", "select_availability")))

	before = testutil.ToFloat64(submissions.WithLabelValues(SubmissionIncomplete))
	ObserveSubmission(SubmissionIncomplete, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(submissions.WithLabelValues(SubmissionIncomplete)))

	assert.NotPanics(t, func() {
		IncAPI("/availability", 200)
		IncAPI("/appointments", 0)
		ObserveUpdate(10 * time.Millisecond)
		IncPanic()
	})
}

func TestRouter(t *testing.T) {
	Register()

	failing := false
	checks := map[string]Check{
		"db": func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		},
		"redis": nil,
	}
	srv := httptest.NewServer(NewRouter(checks, true))
	t.Cleanup(srv.Close)

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/readyz"))
	assert.Equal(t, http.StatusOK, get("/metrics"))

	failing = true
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
}

func TestRouterWithoutMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(nil, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
