package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/domain"
	"bookflow/internal/metrics"
	"bookflow/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10

	cacheKeyServices = "bookflow:catalog:services"
	cacheKeyStaff    = "bookflow:catalog:staff:"
)

var _ domain.SchedulingAPI = (*Client)(nil)

// Client talks to the scheduling backend over REST.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rateLimiter
	retry      RetryPolicy
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRedisCache enables caching of the service and staff catalogue.
func WithRedisCache(rdb *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.redis = rdb
		c.cacheTTL = ttl
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = newRateLimiter(rps, burst)
	}
}

// WithRetry sets the backoff used for GET requests.
func WithRetry(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client from the api config section.
func NewClient(cfg config.APIConfig, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	nop := zerolog.Nop()
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		retry:      DefaultRetryPolicy,
		logger:     &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is a non-2xx response from the backend. Message carries the
// server-provided text verbatim when there is one.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// FetchAvailability asks the backend for bookable slots on one day.
func (c *Client) FetchAvailability(ctx context.Context, req domain.AvailabilityRequest) ([]models.AvailableSlot, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/availability", req, nil, &raw); err != nil {
		return nil, err
	}

	slots, err := decodeSlots(raw)
	if err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	for i := range slots {
		slots[i].StartTimeUTC = slots[i].StartTimeUTC.UTC()
		slots[i].EndTimeUTC = slots[i].EndTimeUTC.UTC()
	}
	return slots, nil
}

// decodeSlots accepts both {"slots":[...]} and a bare array.
func decodeSlots(raw json.RawMessage) ([]models.AvailableSlot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.AvailableSlot{}, nil
	}
	if trimmed[0] == '[' {
		var slots []models.AvailableSlot
		if err := json.Unmarshal(trimmed, &slots); err != nil {
			return nil, err
		}
		return slots, nil
	}
	var wrap struct {
		Slots []models.AvailableSlot `json:"slots"`
	}
	if err := json.Unmarshal(trimmed, &wrap); err != nil {
		return nil, err
	}
	if wrap.Slots == nil {
		wrap.Slots = []models.AvailableSlot{}
	}
	return wrap.Slots, nil
}

// CreateAppointment books a slot. The idempotency key must stay the same
// across retries of one draft.
func (c *Client) CreateAppointment(
	ctx context.Context,
	req domain.CreateAppointmentRequest,
	idempotencyKey string,
) (*models.Appointment, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var appt models.Appointment
	if err := c.doJSON(ctx, http.MethodPost, "/appointments", req, headers, &appt); err != nil {
		return nil, err
	}
	appt.Start = appt.Start.UTC()
	appt.End = appt.End.UTC()
	return &appt, nil
}

// ListAppointments returns the history booked by one chat session. The backend
// scopes the list by the sessionId query parameter.
func (c *Client) ListAppointments(ctx context.Context, sessionID int64) ([]models.Appointment, error) {
	var wrap struct {
		Appointments []models.Appointment `json:"appointments"`
	}
	query := url.Values{"sessionId": {strconv.FormatInt(sessionID, 10)}}
	if err := c.doJSON(ctx, http.MethodGet, "/appointments?"+query.Encode(), nil, nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Appointments, nil
}

// ListServices returns the bookable offerings, cached in redis when configured.
func (c *Client) ListServices(ctx context.Context) ([]models.Service, error) {
	var wrap struct {
		Services []models.Service `json:"services"`
	}

	if c.readCache(ctx, cacheKeyServices, &wrap) {
		return wrap.Services, nil
	}

	if err := c.doJSON(ctx, http.MethodGet, "/services", nil, nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKeyServices, wrap)
	return wrap.Services, nil
}

// ListStaff returns the staff able to deliver a service.
func (c *Client) ListStaff(ctx context.Context, serviceID string) ([]models.StaffMember, error) {
	var wrap struct {
		Staff []models.StaffMember `json:"staff"`
	}

	key := cacheKeyStaff + serviceID
	if c.readCache(ctx, key, &wrap) {
		return wrap.Staff, nil
	}

	path := "/services/" + url.PathEscape(serviceID) + "/staff"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, wrap)
	return wrap.Staff, nil
}

// InvalidateCatalog drops cached services and staff lists.
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	keys := []string{cacheKeyServices}
	iter := c.redis.Scan(ctx, 0, cacheKeyStaff+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

// doJSON sends one request. GETs are retried per the client's RetryPolicy.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	attempts := 1
	if method == http.MethodGet {
		attempts += c.retry.MaxRetries
	}

	for attempt := 1; ; attempt++ {
		err := c.doOnce(ctx, method, path, body, headers, out)
		if err == nil || attempt >= attempts || !retryable(err) {
			return err
		}
		delay := c.retry.NextDelay(attempt)
		c.logger.Debug().Err(err).
			Str("endpoint", endpointLabel(path)).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying scheduling api request")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.addHeaders(req)

	if err := c.limiter.getLimiter(method + " " + endpointLabel(path)).Wait(ctx); err != nil {
		return err
	}
	return c.do(req, endpointLabel(path), out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAPI(endpoint, 0)
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("scheduling api request failed")
		return err
	}
	defer resp.Body.Close()

	metrics.IncAPI(endpoint, resp.StatusCode)
	c.logger.Debug().
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("scheduling api call")

	if resp.StatusCode >= 300 {
		return readHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	herr := &HTTPError{StatusCode: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Message != "":
			herr.Message = payload.Message
		case payload.Error != "":
			herr.Message = payload.Error
		}
	}
	if herr.Message == "" {
		text := strings.TrimSpace(string(data))
		if text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
			herr.Message = text
		}
	}
	return herr
}

// endpointLabel collapses ids so metric labels stay bounded.
func endpointLabel(path string) string {
	path, _, _ = strings.Cut(path, "?")
	if strings.HasPrefix(path, "/services/") && strings.HasSuffix(path, "/staff") {
		return "/services/{id}/staff"
	}
	return path
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
