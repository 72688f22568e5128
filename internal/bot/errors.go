package bot

import (
	"errors"
	"strings"

	"bookflow/internal/models"
	"bookflow/internal/service"
	"bookflow/internal/timeutil"
)

const (
	msgSlowDown     = "⚠️ You are sending messages too quickly. Please wait a moment."
	msgGenericError = "❌ Something went wrong. Please try again in a moment."
	msgStaleButton  = "That button belongs to an earlier step. Here is where you are now."
)

var fieldLabels = map[string]string{
	models.FieldService:     "service",
	models.FieldStaffMember: "staff member",
	models.FieldStart:       "start time",
	models.FieldEnd:         "end time",
	models.FieldTimeZone:    "time zone",
	models.FieldInterval:    "a start time before the end time",
}

// userMessage turns a core error into text for the chat.
func userMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation *service.ValidationError
		fetch      *service.AvailabilityFetchError
		incomplete *service.IncompleteBookingError
		submission *service.SubmissionError
	)
	switch {
	case errors.As(err, &incomplete):
		labels := make([]string, 0, len(incomplete.Missing))
		for _, f := range incomplete.Missing {
			if label, ok := fieldLabels[f]; ok {
				labels = append(labels, label)
			} else {
				labels = append(labels, f)
			}
		}
		return "⚠️ Your booking is missing: " + strings.Join(labels, ", ") + "."
	case errors.As(err, &submission):
		if submission.Message != "" {
			return "❌ " + submission.Message
		}
		return "❌ We couldn't complete your booking. Please try again."
	case errors.As(err, &fetch):
		return "⚠️ Couldn't load available times. Check your connection and tap Retry."
	case errors.Is(err, timeutil.ErrInvalidTimeZone):
		return "⚠️ Unknown time zone. Use an IANA name such as America/Toronto."
	case errors.As(err, &validation):
		return "⚠️ Please check the " + validation.Field + ": " + validation.Reason + "."
	case errors.Is(err, service.ErrSubmissionInFlight):
		return "⏳ Your booking is already being submitted."
	case errors.Is(err, service.ErrSlotNotInResult):
		return "⚠️ That time is no longer in the list. Please pick again."
	case errors.Is(err, service.ErrNoEligibleStaff):
		return "⚠️ Nobody is available at that time. Please pick another."
	case errors.Is(err, service.ErrInvalidTransition):
		return msgStaleButton
	default:
		return msgGenericError
	}
}
