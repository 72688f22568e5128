package timeutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLocal(t *testing.T) {
	tests := []struct {
		name   string
		utc    string
		zone   string
		format TimeFormat
		want   string
	}{
		{"Toronto12h", "2025-06-10T14:00:00Z", "America/Toronto", Format12Hour, "Tue, Jun 10 2025 10:00 AM"},
		{"Toronto24h", "2025-06-10T14:00:00Z", "America/Toronto", Format24Hour, "Tue, Jun 10 2025 10:00"},
		{"EveningPM", "2025-06-10T23:30:00Z", "America/Toronto", Format12Hour, "Tue, Jun 10 2025 7:30 PM"},
		{"DayRollover", "2025-06-10T23:30:00Z", "Asia/Tokyo", Format24Hour, "Wed, Jun 11 2025 08:30"},
		{"BeforeSpringForward", "2025-03-09T06:59:00Z", "America/Toronto", Format12Hour, "Sun, Mar 9 2025 1:59 AM"},
		{"AfterSpringForward", "2025-03-09T07:00:00Z", "America/Toronto", Format12Hour, "Sun, Mar 9 2025 3:00 AM"},
		{"OffsetInput", "2025-06-10T10:00:00-04:00", "UTC", Format24Hour, "Tue, Jun 10 2025 14:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToLocal(tt.utc, tt.zone, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ToLocal(tt.utc, tt.zone, tt.format)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestToLocal_InvalidZone(t *testing.T) {
	for _, zone := range []string{"", "Local", "Mars/Olympus", " America/Toronto"} {
		t.Run(zone, func(t *testing.T) {
			_, err := ToLocal("2025-06-10T14:00:00Z", zone, Format12Hour)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTimeZone))

			var tzErr *InvalidTimeZoneError
			require.ErrorAs(t, err, &tzErr)
			assert.Equal(t, zone, tzErr.Zone)
		})
	}
}

func TestToLocal_InvalidTimestamp(t *testing.T) {
	_, err := ToLocal("10/06/2025", "America/Toronto", Format12Hour)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidTimeZone))
}

func TestLocalHourAndDate(t *testing.T) {
	ts := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)

	hour, err := LocalHour(ts, "America/Toronto")
	require.NoError(t, err)
	assert.Equal(t, 23, hour)

	day, err := LocalDate(ts, "America/Toronto")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09", day)
}

func TestFormatRange(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	got, err := FormatRange(start, start.Add(30*time.Minute), "America/Toronto", Format12Hour)
	require.NoError(t, err)
	assert.Equal(t, "10:00 AM - 10:30 AM", got)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("24h")
	require.NoError(t, err)
	assert.Equal(t, Format24Hour, f)

	f, err = ParseFormat("12-hour")
	require.NoError(t, err)
	assert.Equal(t, Format12Hour, f)

	_, err = ParseFormat("military")
	assert.Error(t, err)
}

func TestFormatUTC(t *testing.T) {
	loc, err := LoadZone("America/Toronto")
	require.NoError(t, err)
	ts := time.Date(2025, 6, 10, 10, 0, 0, 0, loc)
	assert.Equal(t, "2025-06-10T14:00:00Z", FormatUTC(ts))
}

func TestUnknownFormatIsRejected(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	for _, format := range []TimeFormat{"", "24h", "military"} {
		_, err := FormatClock(start, "America/Toronto", format)
		assert.True(t, errors.Is(err, ErrUnknownFormat), "format %q", format)

		_, err = FormatDateTime(start, "America/Toronto", format)
		assert.True(t, errors.Is(err, ErrUnknownFormat), "format %q", format)

		_, err = FormatRange(start, start.Add(time.Hour), "America/Toronto", format)
		assert.True(t, errors.Is(err, ErrUnknownFormat), "format %q", format)

		_, err = ToLocal("2025-06-10T14:00:00Z", "America/Toronto", format)
		assert.True(t, errors.Is(err, ErrUnknownFormat), "format %q", format)
	}

	_, err := ParseFormat("military")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}
