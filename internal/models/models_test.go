package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingDraft_Merge(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	svc := Service{ID: "S", Name: "Tax review", DurationMinutes: 30}

	t.Run("LeftToRight", func(t *testing.T) {
		d := BookingDraft{}.
			Merge(BookingDraft{Service: &svc, Comments: Ptr("first")}).
			Merge(BookingDraft{Start: &start, End: &end}).
			Merge(BookingDraft{Comments: Ptr("second")})

		require.NotNil(t, d.Service)
		assert.Equal(t, "S", d.Service.ID)
		assert.Equal(t, start, *d.Start)
		assert.Equal(t, end, *d.End)
		assert.Equal(t, "second", d.CommentsText())
		assert.Nil(t, d.StaffMember)
		assert.Nil(t, d.TimeZone)
	})

	t.Run("NormalisesToUTC", func(t *testing.T) {
		loc, err := time.LoadLocation("America/Toronto")
		require.NoError(t, err)
		local := start.In(loc)
		d := BookingDraft{}.Merge(BookingDraft{Start: &local})
		assert.Equal(t, time.UTC, d.Start.Location())
		assert.True(t, d.Start.Equal(start))
	})

	t.Run("DoesNotAlias", func(t *testing.T) {
		zone := "America/Toronto"
		d := BookingDraft{}.Merge(BookingDraft{TimeZone: &zone})
		zone = "Europe/Paris"
		assert.Equal(t, "America/Toronto", d.Zone())
	})
}

func TestBookingDraft_Missing(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	assert.Equal(t, []string{FieldService, FieldStaffMember, FieldStart, FieldEnd, FieldTimeZone}, BookingDraft{}.Missing())

	partial := BookingDraft{Service: &Service{ID: "S"}, StaffMember: &StaffMember{ID: "M"}}
	assert.Equal(t, []string{FieldStart, FieldEnd, FieldTimeZone}, partial.Missing())
	assert.False(t, partial.IsComplete())
	assert.False(t, partial.HasSlot())

	full := partial.Merge(BookingDraft{Start: &start, End: &end, TimeZone: Ptr("America/Toronto")})
	assert.Empty(t, full.Missing())
	assert.True(t, full.IsComplete())
	assert.True(t, full.HasSlot())

	emptyZone := full.Merge(BookingDraft{TimeZone: Ptr("")})
	assert.Equal(t, []string{FieldTimeZone}, emptyZone.Missing())
}

func TestBookingDraft_ValidInterval(t *testing.T) {
	start := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)

	assert.True(t, BookingDraft{}.ValidInterval())
	assert.True(t, BookingDraft{Start: &start}.ValidInterval())
	assert.True(t, BookingDraft{Start: &earlier, End: &start}.ValidInterval())
	assert.False(t, BookingDraft{Start: &start, End: &earlier}.ValidInterval())
	assert.False(t, BookingDraft{Start: &start, End: &start}.ValidInterval())
}

func TestStep_Order(t *testing.T) {
	steps := []Step{StepSelectService, StepSelectAvailability, StepEnterDetails, StepReviewSummary, StepSubmitting, StepConfirmed}
	for i, s := range steps {
		assert.Equal(t, i, s.Order())
	}
	assert.Equal(t, -1, Step("unknown").Order())
}

func TestAvailableSlot_HasStaff(t *testing.T) {
	slot := AvailableSlot{AvailableStaff: []StaffMember{{ID: "a"}, {ID: "b"}}}
	assert.True(t, slot.HasStaff("b"))
	assert.False(t, slot.HasStaff("c"))
}
