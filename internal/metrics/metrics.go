package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookflow"

// Availability outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Submission outcomes.
const (
	SubmissionSuccess    = "success"
	SubmissionFailure    = "failure"
	SubmissionIncomplete = "incomplete"
)

var (
	once sync.Once

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Availability lookups by outcome.",
		},
		[]string{"outcome"},
	)

	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Booking wizard step transitions.",
		},
		[]string{"from", "to"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	submissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "booking_submission_duration_seconds",
		Help:      "Time spent creating an appointment on the backend.",
		Buckets:   prometheus.DefBuckets,
	})

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Scheduling API calls by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	updateProcessing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bot_update_processing_seconds",
		Help:      "Time spent processing a chat update.",
		Buckets:   prometheus.DefBuckets,
	})

	handlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_handler_panics_total",
		Help:      "Recovered panics in update handlers.",
	})
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityRequests,
			wizardTransitions,
			submissions,
			submissionDuration,
			apiRequests,
			updateProcessing,
			handlerPanics,
		)
	})
}

func IncAvailability(outcome string) {
	availabilityRequests.WithLabelValues(outcome).Inc()
}

func IncTransition(from, to string) {
	wizardTransitions.WithLabelValues(from, to).Inc()
}

func ObserveSubmission(outcome string, elapsed time.Duration) {
	submissions.WithLabelValues(outcome).Inc()
	if outcome != SubmissionIncomplete {
		submissionDuration.Observe(elapsed.Seconds())
	}
}

// IncAPI counts a backend call; code 0 means the request never got a response.
func IncAPI(endpoint string, code int) {
	apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func ObserveUpdate(elapsed time.Duration) {
	updateProcessing.Observe(elapsed.Seconds())
}

func IncPanic() {
	handlerPanics.Inc()
}
