package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/timeutil"

	"github.com/rs/zerolog"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// AvailabilityParams is the tuple an availability lookup is keyed on.
type AvailabilityParams struct {
	ServiceID string
	StaffID   string
	// Date is YYYY-MM-DD or any RFC 3339 instant within the wanted day.
	Date     string
	TimeZone string
}

// Validate reports the first malformed field.
func (p AvailabilityParams) Validate() error {
	_, err := p.normalize()
	return err
}

// normalize validates p and rewrites Date to the YYYY-MM-DD it denotes in TimeZone.
func (p AvailabilityParams) normalize() (AvailabilityParams, error) {
	if p.ServiceID == "" {
		return p, validationError("serviceId", "is required")
	}
	if !identifierPattern.MatchString(p.ServiceID) {
		return p, validationError("serviceId", "is not a valid identifier")
	}
	if p.StaffID != "" && !identifierPattern.MatchString(p.StaffID) {
		return p, validationError("staffId", "is not a valid identifier")
	}
	if p.TimeZone == "" {
		return p, validationError("timeZone", "is required")
	}
	if !timeutil.ValidZone(p.TimeZone) {
		return p, validationError("timeZone", "is not a valid IANA zone")
	}

	raw := strings.TrimSpace(p.Date)
	if raw == "" {
		return p, validationError("date", "is required")
	}
	if d, err := time.Parse(timeutil.DateLayout, raw); err == nil {
		p.Date = d.Format(timeutil.DateLayout)
		return p, nil
	}
	instant, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return p, validationError("date", "must be YYYY-MM-DD or an RFC 3339 timestamp")
	}
	day, err := timeutil.LocalDate(instant, p.TimeZone)
	if err != nil {
		return p, validationError("timeZone", err.Error())
	}
	p.Date = day
	return p, nil
}

func (p AvailabilityParams) request() domain.AvailabilityRequest {
	return domain.AvailabilityRequest{
		ServiceID: p.ServiceID,
		StaffID:   p.StaffID,
		Date:      p.Date,
		TimeZone:  p.TimeZone,
	}
}

// AvailabilityResult is one accepted response. An empty Slots list is a valid outcome.
type AvailabilityResult struct {
	Params     AvailabilityParams
	Slots      []models.AvailableSlot
	Generation uint64
	FetchedAt  time.Time
}

// Groups buckets the result by local time of day.
func (r *AvailabilityResult) Groups() (SlotGroups, error) {
	return GroupSlots(r.Slots, r.Params.TimeZone)
}

type pendingFetch struct {
	params     AvailabilityParams
	generation uint64
	done       chan struct{}
	result     *AvailabilityResult
	err        error
}

// AvailabilityQuery fetches slots for one session with last-request-wins
// semantics: a response is accepted only if no newer request was issued while
// it was in flight.
type AvailabilityQuery struct {
	api       domain.SchedulingAPI
	draft     *DraftStore
	selection *SlotSelection
	logger    *zerolog.Logger
	now       func() time.Time

	mu         sync.Mutex
	generation uint64
	lastParams *AvailabilityParams
	pending    *pendingFetch
	current    *AvailabilityResult
	lastErr    error
}

func NewAvailabilityQuery(api domain.SchedulingAPI, draft *DraftStore, selection *SlotSelection, logger *zerolog.Logger) *AvailabilityQuery {
	return &AvailabilityQuery{
		api:       api,
		draft:     draft,
		selection: selection,
		logger:    logging.Component(logger, "availability"),
		now:       time.Now,
	}
}

// Fetch loads slots for params. Invalid params fail with *ValidationError before
// any network call. A response overtaken by a newer request returns
// ErrStaleResult and leaves Current untouched. Transport and server failures
// return *AvailabilityFetchError and never touch the draft.
func (q *AvailabilityQuery) Fetch(ctx context.Context, params AvailabilityParams) (*AvailabilityResult, error) {
	normalized, err := params.normalize()
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.pending != nil && q.pending.params == normalized {
		// the same tuple is already in flight
		call := q.pending
		q.mu.Unlock()
		return q.wait(ctx, call)
	}

	if q.lastParams != nil && *q.lastParams != normalized {
		q.selection.Clear()
		q.draft.ClearSlot()
	}
	q.generation++
	call := &pendingFetch{params: normalized, generation: q.generation, done: make(chan struct{})}
	q.pending = call
	q.lastParams = &normalized
	q.mu.Unlock()

	q.logger.Debug().
		Uint64("generation", call.generation).
		Str("service_id", normalized.ServiceID).
		Str("staff_id", normalized.StaffID).
		Str("date", normalized.Date).
		Str("time_zone", normalized.TimeZone).
		Msg("fetching availability")

	slots, fetchErr := q.api.FetchAvailability(ctx, normalized.request())
	q.complete(call, slots, fetchErr)
	return call.result, call.err
}

func (q *AvailabilityQuery) wait(ctx context.Context, call *pendingFetch) (*AvailabilityResult, error) {
	select {
	case <-call.done:
		return call.result, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *AvailabilityQuery) complete(call *pendingFetch, slots []models.AvailableSlot, fetchErr error) {
	q.mu.Lock()
	defer func() {
		if q.pending == call {
			q.pending = nil
		}
		q.mu.Unlock()
		close(call.done)
	}()

	if call.generation != q.generation {
		metrics.IncAvailability(metrics.OutcomeStale)
		q.logger.Debug().Uint64("generation", call.generation).Uint64("current", q.generation).
			Msg("discarding stale availability response")
		call.err = ErrStaleResult
		return
	}

	if fetchErr != nil {
		metrics.IncAvailability(metrics.OutcomeError)
		q.logger.Warn().Err(fetchErr).Str("service_id", call.params.ServiceID).Msg("availability fetch failed")
		if q.current != nil && q.current.Params != call.params {
			q.current = nil
		}
		call.err = &AvailabilityFetchError{Params: call.params, Err: fetchErr}
		q.lastErr = call.err
		return
	}

	if slots == nil {
		slots = []models.AvailableSlot{}
	}
	result := &AvailabilityResult{
		Params:     call.params,
		Slots:      slots,
		Generation: call.generation,
		FetchedAt:  q.now(),
	}
	q.current = result
	q.lastErr = nil
	q.selection.Bind(result)

	if len(slots) == 0 {
		metrics.IncAvailability(metrics.OutcomeEmpty)
	} else {
		metrics.IncAvailability(metrics.OutcomeOK)
	}
	call.result = result
}

// Retry re-issues the most recent parameters.
func (q *AvailabilityQuery) Retry(ctx context.Context) (*AvailabilityResult, error) {
	q.mu.Lock()
	last := q.lastParams
	q.mu.Unlock()
	if last == nil {
		return nil, ErrNoQuery
	}
	return q.Fetch(ctx, *last)
}

// Current returns the latest accepted result, or nil.
func (q *AvailabilityQuery) Current() *AvailabilityResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// LastError returns the failure of the most recent request, if it failed.
func (q *AvailabilityQuery) LastError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// Params returns the most recently requested tuple.
func (q *AvailabilityQuery) Params() (AvailabilityParams, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lastParams == nil {
		return AvailabilityParams{}, false
	}
	return *q.lastParams, true
}

// Loading reports whether a request for the latest tuple is still in flight.
func (q *AvailabilityQuery) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil && q.pending.generation == q.generation
}

// Reset forgets all results; used when a booking is reset.
func (q *AvailabilityQuery) Reset() {
	q.mu.Lock()
	q.generation++
	q.pending = nil
	q.lastParams = nil
	q.current = nil
	q.lastErr = nil
	q.mu.Unlock()
	q.selection.Clear()
}
