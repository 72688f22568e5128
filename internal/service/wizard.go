package service

import (
	"context"
	"sync"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
)

// EditTarget names what the user wants to change from the summary.
type EditTarget string

const (
	EditService  EditTarget = "service"
	EditStaff    EditTarget = "staff"
	EditTime     EditTarget = "time"
	EditComments EditTarget = "comments"
)

// Step returns the step an edit link routes to.
func (t EditTarget) Step() (models.Step, bool) {
	switch t {
	case EditService, EditStaff, EditTime:
		return models.StepSelectAvailability, true
	case EditComments:
		return models.StepEnterDetails, true
	default:
		return "", false
	}
}

var stepOrder = []models.Step{
	models.StepSelectService,
	models.StepSelectAvailability,
	models.StepEnterDetails,
	models.StepReviewSummary,
	models.StepSubmitting,
	models.StepConfirmed,
}

// Wizard is the booking flow state machine. It decides whether a transition is
// allowed; the host decides how to render the resulting step.
type Wizard struct {
	sessionID int64
	draft     *DraftStore
	submitter Submitter
	events    domain.EventPublisher
	logger    *zerolog.Logger

	mu           sync.Mutex
	step         models.Step
	submitting   bool
	confirmation *Confirmation
}

func NewWizard(draft *DraftStore, submitter Submitter, publisher domain.EventPublisher, logger *zerolog.Logger) *Wizard {
	return &Wizard{
		sessionID: draft.SessionID(),
		draft:     draft,
		submitter: submitter,
		events:    publisher,
		logger:    logging.Component(logger, "wizard"),
		step:      models.StepSelectService,
	}
}

func (w *Wizard) Step() models.Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft is a read-through to the session's draft store.
func (w *Wizard) Draft() models.BookingDraft {
	return w.draft.Draft()
}

// Confirmation is set only while on the confirmed step.
func (w *Wizard) Confirmation() *Confirmation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmation
}

// guard returns the fields that must be set before entering step.
func guard(step models.Step, draft models.BookingDraft) []string {
	var missing []string
	switch step {
	case models.StepSelectService:
		return nil
	case models.StepSelectAvailability:
		if draft.Service == nil {
			missing = append(missing, models.FieldService)
		}
	case models.StepEnterDetails, models.StepReviewSummary:
		for _, f := range draft.Missing() {
			if f != models.FieldService {
				missing = append(missing, f)
			}
		}
		if !draft.ValidInterval() {
			missing = append(missing, models.FieldInterval)
		}
	}
	return missing
}

// Start begins a new booking. An unfinished previous draft is abandoned.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return ErrSubmissionInFlight
	}
	step := w.step
	w.mu.Unlock()

	if step == models.StepConfirmed {
		return w.Acknowledge(ctx)
	}
	if step == models.StepSelectService && w.draft.Draft().IsEmpty() {
		return nil
	}
	return w.Abandon()
}

// Next advances one step if the guard for the next step passes.
func (w *Wizard) Next() (models.Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.step
	var to models.Step
	switch from {
	case models.StepSelectService:
		to = models.StepSelectAvailability
	case models.StepSelectAvailability:
		to = models.StepEnterDetails
	case models.StepEnterDetails:
		to = models.StepReviewSummary
	default:
		// review_summary leaves only through Confirm
		return from, &TransitionError{From: from, To: nextOf(from)}
	}

	if missing := guard(to, w.draft.Draft()); len(missing) > 0 {
		return from, &TransitionError{From: from, To: to, Missing: missing}
	}
	w.transitionLocked(to)
	return to, nil
}

// Back moves one step back. Draft data is kept.
func (w *Wizard) Back() (models.Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.step
	switch from {
	case models.StepSubmitting:
		return from, ErrSubmissionInFlight
	case models.StepSelectService, models.StepConfirmed:
		return from, &TransitionError{From: from, To: prevOf(from)}
	}
	to := prevOf(from)
	w.transitionLocked(to)
	return to, nil
}

// JumpTo moves to any earlier step, or to a later one up to review_summary
// when every guard along the way passes.
func (w *Wizard) JumpTo(step models.Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jumpLocked(step)
}

func (w *Wizard) jumpLocked(step models.Step) error {
	from := w.step
	target := step.Order()
	if target < 0 || target > models.StepReviewSummary.Order() {
		return &TransitionError{From: from, To: step}
	}
	switch from {
	case models.StepSubmitting:
		return ErrSubmissionInFlight
	case models.StepConfirmed:
		return &TransitionError{From: from, To: step}
	}
	if from == step {
		return nil
	}

	if target > from.Order() {
		draft := w.draft.Draft()
		for _, s := range stepOrder[from.Order()+1 : target+1] {
			if missing := guard(s, draft); len(missing) > 0 {
				return &TransitionError{From: from, To: step, Missing: missing}
			}
		}
	}
	w.transitionLocked(step)
	return nil
}

// Edit follows an edit link from the summary without clearing unrelated fields.
func (w *Wizard) Edit(target EditTarget) (models.Step, error) {
	step, ok := target.Step()
	if !ok {
		return w.Step(), validationError("edit", "unknown target "+string(target))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.jumpLocked(step); err != nil {
		return w.step, err
	}
	return step, nil
}

// Review returns the draft for the summary, or *IncompleteBookingError when
// any required field is unset.
func (w *Wizard) Review() (models.BookingDraft, error) {
	draft := w.draft.Draft()
	if missing := draft.Missing(); len(missing) > 0 {
		return draft, &IncompleteBookingError{Missing: missing}
	}
	if !draft.ValidInterval() {
		return draft, validationError("end", "must be after start")
	}
	return draft, nil
}

// Confirm submits the draft. The completeness gate runs first and makes no
// network call on failure. On a backend failure the wizard returns to
// review_summary with the draft intact.
func (w *Wizard) Confirm(ctx context.Context) (*Confirmation, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if w.step != models.StepReviewSummary {
		from := w.step
		w.mu.Unlock()
		return nil, &TransitionError{From: from, To: models.StepSubmitting}
	}
	draft, err := w.Review()
	if err != nil {
		w.mu.Unlock()
		metrics.ObserveSubmission(metrics.SubmissionIncomplete, 0)
		return nil, err
	}
	w.submitting = true
	w.transitionLocked(models.StepSubmitting)
	key := w.draft.IdempotencyKey()
	w.mu.Unlock()

	appt, err := w.submitter.Submit(WithSessionID(ctx, w.sessionID), draft, key)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.transitionLocked(models.StepReviewSummary)
		return nil, err
	}
	w.confirmation = &Confirmation{Appointment: *appt, TimeZone: draft.Zone()}
	w.transitionLocked(models.StepConfirmed)
	return w.confirmation, nil
}

// Acknowledge dismisses the confirmation: the draft is reset once, the
// appointment list is invalidated, and the wizard returns to the first step.
func (w *Wizard) Acknowledge(_ context.Context) error {
	w.mu.Lock()
	if w.step != models.StepConfirmed {
		from := w.step
		w.mu.Unlock()
		return &TransitionError{From: from, To: models.StepSelectService}
	}
	w.confirmation = nil
	w.transitionLocked(models.StepSelectService)
	w.mu.Unlock()

	w.draft.ResetBooking()
	if w.events != nil {
		payload := events.SessionEventPayload{SessionID: w.sessionID}
		if err := w.events.PublishJSON(events.EventAppointmentsInvalidated, payload); err != nil {
			w.logger.Warn().Err(err).Msg("failed to publish appointments_invalidated")
		}
	}
	return nil
}

// Abandon drops the booking in progress.
func (w *Wizard) Abandon() error {
	w.mu.Lock()
	switch w.step {
	case models.StepSubmitting:
		w.mu.Unlock()
		return ErrSubmissionInFlight
	case models.StepConfirmed:
		w.mu.Unlock()
		return w.Acknowledge(context.Background())
	}
	w.transitionLocked(models.StepSelectService)
	w.mu.Unlock()

	w.draft.ResetBooking()
	return nil
}

// Restore resumes at a persisted step, falling back to the furthest step
// whose guards the restored draft still satisfies.
func (w *Wizard) Restore(step models.Step) models.Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch step {
	case models.StepSubmitting:
		// the outcome of an interrupted submission is unknown; the idempotency
		// key makes a second Confirm safe
		step = models.StepReviewSummary
	case models.StepConfirmed:
		// the booking went through; only the acknowledgement was lost
		w.draft.ResetBooking()
		step = models.StepSelectService
	}
	if step.Order() < 0 {
		step = models.StepSelectService
	}

	draft := w.draft.Draft()
	resumed := models.StepSelectService
	for _, s := range stepOrder[1 : step.Order()+1] {
		if len(guard(s, draft)) > 0 {
			break
		}
		resumed = s
	}
	w.step = resumed
	w.draft.setStep(resumed)
	return resumed
}

func (w *Wizard) transitionLocked(to models.Step) {
	from := w.step
	w.step = to
	w.draft.setStep(to)
	metrics.IncTransition(string(from), string(to))
	w.logger.Debug().
		Int64("session_id", w.sessionID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("wizard transition")
}

func nextOf(step models.Step) models.Step {
	if i := step.Order(); i >= 0 && i+1 < len(stepOrder) {
		return stepOrder[i+1]
	}
	return step
}

func prevOf(step models.Step) models.Step {
	if i := step.Order(); i > 0 {
		return stepOrder[i-1]
	}
	return step
}
