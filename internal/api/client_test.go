package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.APIConfig{BaseURL: srv.URL + "/", APIKey: "secret"}, opts...)
}

func TestFetchAvailability(t *testing.T) {
	var got domain.AvailabilityRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/availability", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"slots":[{"startTimeUTC":"2025-06-10T10:00:00-04:00","endTimeUTC":"2025-06-10T14:30:00Z","availableStaff":[{"id":"m1","name":"Mia"}]}]}`))
	}))

	slots, err := client.FetchAvailability(context.Background(), domain.AvailabilityRequest{
		ServiceID: "svc-1",
		Date:      "2025-06-10",
		TimeZone:  "America/Toronto",
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)

	assert.Equal(t, "svc-1", got.ServiceID)
	assert.Empty(t, got.StaffID)
	assert.Equal(t, time.UTC, slots[0].StartTimeUTC.Location())
	assert.True(t, slots[0].StartTimeUTC.Equal(time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Mia", slots[0].AvailableStaff[0].Name)
}

func TestFetchAvailabilityShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"BareArray", `[{"startTimeUTC":"2025-06-10T14:00:00Z","endTimeUTC":"2025-06-10T14:30:00Z","availableStaff":[]}]`, 1},
		{"EmptyList", `{"slots":[]}`, 0},
		{"MissingSlots", `{}`, 0},
		{"EmptyBody", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			slots, err := client.FetchAvailability(context.Background(), domain.AvailabilityRequest{ServiceID: "s"})
			require.NoError(t, err)
			assert.NotNil(t, slots)
			assert.Len(t, slots, tt.want)
		})
	}
}

func TestHTTPErrorMessages(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		temporary bool
	}{
		{"MessageField", http.StatusConflict, `{"message":"Slot is no longer available"}`, "Slot is no longer available", false},
		{"ErrorField", http.StatusBadRequest, `{"error":"staffId is required"}`, "staffId is required", false},
		{"PlainText", http.StatusBadGateway, "upstream down", "upstream down", true},
		{"NoBody", http.StatusInternalServerError, "", "", true},
		{"RateLimited", http.StatusTooManyRequests, `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.CreateAppointment(context.Background(), domain.CreateAppointmentRequest{ServiceID: "s"}, "key")
			var herr *HTTPError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, tt.status, herr.StatusCode)
			assert.Equal(t, tt.message, herr.Message)
			assert.Equal(t, tt.temporary, herr.Temporary())
			assert.NotEmpty(t, herr.Error())
		})
	}
}

func TestCreateAppointment(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	var keys []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments", r.URL.Path)
		keys = append(keys, r.Header.Get("Idempotency-Key"))

		var req domain.CreateAppointmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m1", req.StaffID)
		assert.Equal(t, int64(42), req.SessionID)
		assert.True(t, start.Equal(req.Start))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "appt-1",
			"service":     map[string]any{"id": req.ServiceID, "name": "Tax review", "durationMinutes": 30},
			"staffMember": map[string]any{"id": req.StaffID, "name": "Mia"},
			"start":       req.Start,
			"end":         req.End,
			"status":      "pending",
		})
	}))

	req := domain.CreateAppointmentRequest{
		ServiceID: "svc-1",
		StaffID:   "m1",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		TimeZone:  "America/Toronto",
		SessionID: 42,
	}
	appt, err := client.CreateAppointment(context.Background(), req, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, 30, appt.Service.DurationMinutes)

	_, err = client.CreateAppointment(context.Background(), req, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"idem-1", "idem-1"}, keys)
}

func TestListAppointments(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appointments", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("sessionId"))
		_, _ = w.Write([]byte(`{"appointments":[{"id":"a1","status":"confirmed"},{"id":"a2","status":"cancelled"}]}`))
	}))

	list, err := client.ListAppointments(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsActive())
	assert.False(t, list[1].IsActive())
}

func TestCatalogCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var serviceCalls, staffCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/services", func(w http.ResponseWriter, _ *http.Request) {
		serviceCalls.Add(1)
		_, _ = w.Write([]byte(`{"services":[{"id":"svc-1","name":"Tax review","durationMinutes":30,"online":true}]}`))
	})
	mux.HandleFunc("/services/svc-1/staff", func(w http.ResponseWriter, _ *http.Request) {
		staffCalls.Add(1)
		_, _ = w.Write([]byte(`{"staff":[{"id":"m1","name":"Mia"}]}`))
	})

	client := newTestClient(t, mux, WithRedisCache(rdb, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		services, err := client.ListServices(ctx)
		require.NoError(t, err)
		require.Len(t, services, 1)
		assert.True(t, services[0].Online)

		staff, err := client.ListStaff(ctx, "svc-1")
		require.NoError(t, err)
		require.Len(t, staff, 1)
	}
	assert.Equal(t, int32(1), serviceCalls.Load())
	assert.Equal(t, int32(1), staffCalls.Load())
	assert.True(t, mr.Exists(cacheKeyServices))

	require.NoError(t, client.InvalidateCatalog(ctx))
	assert.False(t, mr.Exists(cacheKeyServices))
	assert.False(t, mr.Exists(cacheKeyStaff+"svc-1"))

	_, err := client.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), serviceCalls.Load())
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(config.APIConfig{BaseURL: srv.URL})
	_, err := client.ListServices(context.Background())
	assert.Error(t, err)

	var herr *HTTPError
	assert.False(t, errors.As(err, &herr))
}

func TestRateLimiterPerEndpoint(t *testing.T) {
	l := newRateLimiter(1, 1)
	a := l.getLimiter("POST /availability")
	assert.Same(t, a, l.getLimiter("POST /availability"))
	assert.NotSame(t, a, l.getLimiter("POST /appointments"))

	assert.True(t, a.Allow())
	assert.False(t, a.Allow())

	unlimited := newRateLimiter(0, 0).getLimiter("x")
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/services/{id}/staff", endpointLabel("/services/abc/staff"))
	assert.Equal(t, "/availability", endpointLabel("/availability"))
	assert.Equal(t, "/appointments", endpointLabel("/appointments?sessionId=42"))
}
