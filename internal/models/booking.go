package models

import "time"

// Service is a bookable offering.
type Service struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	Online          bool   `json:"online"`
	InPerson        bool   `json:"inPerson"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type StaffMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AvailableSlot is one bookable interval returned by the scheduling backend.
type AvailableSlot struct {
	StartTimeUTC   time.Time     `json:"startTimeUTC"`
	EndTimeUTC     time.Time     `json:"endTimeUTC"`
	AvailableStaff []StaffMember `json:"availableStaff"`
}

// Key identifies a slot within one result set.
func (s AvailableSlot) Key() string {
	return s.StartTimeUTC.UTC().Format(time.RFC3339) + "/" + s.EndTimeUTC.UTC().Format(time.RFC3339)
}

func (s AvailableSlot) HasStaff(id string) bool {
	for _, m := range s.AvailableStaff {
		if m.ID == id {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID          string      `json:"id"`
	Service     Service     `json:"service"`
	StaffMember StaffMember `json:"staffMember"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	TimeZone    string      `json:"timeZone,omitempty"`
	Status      string      `json:"status"` // pending, confirmed, cancelled, completed
	Comments    string      `json:"comments,omitempty"`
	MeetingLink string      `json:"meetingLink,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty"`
}

func (a Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}
