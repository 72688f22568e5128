// Package timeutil converts UTC instants to wall-clock strings in an IANA zone.
// Everything here is pure; DST handling comes from the Go tz database.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeFormat selects the clock style used for display.
type TimeFormat string

const (
	Format12Hour TimeFormat = "12-hour"
	Format24Hour TimeFormat = "24-hour"
)

const (
	DateLayout = "2006-01-02"

	dateDisplayLayout = "Mon, Jan 2 2006"
	clock12Layout     = "3:04 PM"
	clock24Layout     = "15:04"
)

var (
	ErrInvalidTimeZone = errors.New("invalid time zone")
	ErrUnknownFormat   = errors.New("unknown time format")
)

// InvalidTimeZoneError carries the offending zone name.
type InvalidTimeZoneError struct {
	Zone string
	Err  error
}

func (e *InvalidTimeZoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid time zone %q: %v", e.Zone, e.Err)
	}
	return fmt.Sprintf("invalid time zone %q", e.Zone)
}

func (e *InvalidTimeZoneError) Is(target error) bool {
	return target == ErrInvalidTimeZone
}

func (e *InvalidTimeZoneError) Unwrap() error {
	return e.Err
}

// LoadZone resolves an IANA zone name. Empty and "Local" are rejected: both would
// make the output depend on the host instead of the booking.
func LoadZone(zone string) (*time.Location, error) {
	name := strings.TrimSpace(zone)
	if name == "" || name == "Local" || name != zone {
		return nil, &InvalidTimeZoneError{Zone: zone}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &InvalidTimeZoneError{Zone: zone, Err: err}
	}
	return loc, nil
}

func ValidZone(zone string) bool {
	_, err := LoadZone(zone)
	return err == nil
}

func ParseFormat(raw string) (TimeFormat, error) {
	switch TimeFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case Format12Hour, "12", "12h":
		return Format12Hour, nil
	case Format24Hour, "24", "24h":
		return Format24Hour, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, raw)
	}
}

// ParseUTC parses an RFC 3339 timestamp and normalises it to UTC.
func ParseUTC(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// FormatUTC renders t as an RFC 3339 UTC timestamp with a Z suffix.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ToLocal renders a UTC ISO-8601 timestamp as date and time in zone.
func ToLocal(utcISO, zone string, format TimeFormat) (string, error) {
	t, err := ParseUTC(utcISO)
	if err != nil {
		return "", err
	}
	return FormatDateTime(t, zone, format)
}

// FormatDateTime is ToLocal for an already parsed instant.
func FormatDateTime(t time.Time, zone string, format TimeFormat) (string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	layout, err := clockLayout(format)
	if err != nil {
		return "", err
	}
	local := t.In(loc)
	return local.Format(dateDisplayLayout) + " " + local.Format(layout), nil
}

// FormatClock renders only the wall-clock time of t in zone.
func FormatClock(t time.Time, zone string, format TimeFormat) (string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	layout, err := clockLayout(format)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(layout), nil
}

// FormatRange renders "10:00 AM - 10:30 AM" style intervals.
func FormatRange(start, end time.Time, zone string, format TimeFormat) (string, error) {
	from, err := FormatClock(start, zone, format)
	if err != nil {
		return "", err
	}
	to, err := FormatClock(end, zone, format)
	if err != nil {
		return "", err
	}
	return from + " - " + to, nil
}

func FormatDate(t time.Time, zone string) (string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(dateDisplayLayout), nil
}

// LocalHour returns the wall-clock hour of t in zone.
func LocalHour(t time.Time, zone string) (int, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return t.In(loc).Hour(), nil
}

// LocalDate returns the calendar day (YYYY-MM-DD) that t falls on in zone.
func LocalDate(t time.Time, zone string) (string, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateLayout), nil
}

// clockLayout only knows the canonical values; raw input goes through ParseFormat first.
func clockLayout(format TimeFormat) (string, error) {
	switch format {
	case Format12Hour:
		return clock12Layout, nil
	case Format24Hour:
		return clock24Layout, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, string(format))
	}
}
