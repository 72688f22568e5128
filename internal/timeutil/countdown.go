package timeutil

import (
	"fmt"
	"time"
)

type CountdownUnit string

const (
	UnitNow     CountdownUnit = "now"
	UnitMinutes CountdownUnit = "minute"
	UnitHours   CountdownUnit = "hour"
	UnitDays    CountdownUnit = "day"
)

// CountdownValue is the time left until an appointment in its coarsest unit.
type CountdownValue struct {
	Value int
	Unit  CountdownUnit
}

// Countdown picks days if at least a day remains, else hours if at least an hour
// remains, else minutes. Values are rounded down, except that anything under a
// minute still reads as 1 minute so a future start never shows as "0 minutes".
func Countdown(now, start time.Time) CountdownValue {
	d := start.Sub(now)
	switch {
	case d <= 0:
		return CountdownValue{Unit: UnitNow}
	case d >= 24*time.Hour:
		return CountdownValue{Value: int(d / (24 * time.Hour)), Unit: UnitDays}
	case d >= time.Hour:
		return CountdownValue{Value: int(d / time.Hour), Unit: UnitHours}
	case d < time.Minute:
		return CountdownValue{Value: 1, Unit: UnitMinutes}
	default:
		return CountdownValue{Value: int(d / time.Minute), Unit: UnitMinutes}
	}
}

func (c CountdownValue) String() string {
	if c.Unit == UnitNow {
		return "now"
	}
	if c.Value == 1 {
		return fmt.Sprintf("1 %s", c.Unit)
	}
	return fmt.Sprintf("%d %ss", c.Value, c.Unit)
}
