package models

import "time"

// BookingDraft is the in-progress booking carried across wizard steps.
// A nil field is unset. The same type doubles as a partial update.
type BookingDraft struct {
	Service     *Service     `json:"service,omitempty"`
	StaffMember *StaffMember `json:"staffMember,omitempty"`
	Start       *time.Time   `json:"start,omitempty"`
	End         *time.Time   `json:"end,omitempty"`
	TimeZone    *string      `json:"timeZone,omitempty"`
	Comments    *string      `json:"comments,omitempty"`
}

const (
	FieldService     = "service"
	FieldStaffMember = "staffMember"
	FieldStart       = "start"
	FieldEnd         = "end"
	FieldTimeZone    = "timeZone"

	// FieldInterval names the start/end pair when both are set but out of order.
	FieldInterval = "interval"
)

// Merge returns a copy of d with every set field of patch applied.
func (d BookingDraft) Merge(patch BookingDraft) BookingDraft {
	out := d.Clone()
	if patch.Service != nil {
		s := *patch.Service
		out.Service = &s
	}
	if patch.StaffMember != nil {
		m := *patch.StaffMember
		out.StaffMember = &m
	}
	if patch.Start != nil {
		t := patch.Start.UTC()
		out.Start = &t
	}
	if patch.End != nil {
		t := patch.End.UTC()
		out.End = &t
	}
	if patch.TimeZone != nil {
		z := *patch.TimeZone
		out.TimeZone = &z
	}
	if patch.Comments != nil {
		c := *patch.Comments
		out.Comments = &c
	}
	return out
}

// Clone deep-copies the draft so callers never share pointers with the store.
func (d BookingDraft) Clone() BookingDraft {
	return BookingDraft{}.mergeInto(d)
}

func (d BookingDraft) mergeInto(src BookingDraft) BookingDraft {
	if src.Service != nil {
		s := *src.Service
		d.Service = &s
	}
	if src.StaffMember != nil {
		m := *src.StaffMember
		d.StaffMember = &m
	}
	if src.Start != nil {
		t := *src.Start
		d.Start = &t
	}
	if src.End != nil {
		t := *src.End
		d.End = &t
	}
	if src.TimeZone != nil {
		z := *src.TimeZone
		d.TimeZone = &z
	}
	if src.Comments != nil {
		c := *src.Comments
		d.Comments = &c
	}
	return d
}

// Missing lists the required fields that are unset, in wizard order.
func (d BookingDraft) Missing() []string {
	var missing []string
	if d.Service == nil {
		missing = append(missing, FieldService)
	}
	if d.StaffMember == nil {
		missing = append(missing, FieldStaffMember)
	}
	if d.Start == nil {
		missing = append(missing, FieldStart)
	}
	if d.End == nil {
		missing = append(missing, FieldEnd)
	}
	if d.TimeZone == nil || *d.TimeZone == "" {
		missing = append(missing, FieldTimeZone)
	}
	return missing
}

// ValidInterval is false only when start and end are both set and start is not
// strictly before end.
func (d BookingDraft) ValidInterval() bool {
	if d.Start == nil || d.End == nil {
		return true
	}
	return d.Start.Before(*d.End)
}

func (d BookingDraft) IsComplete() bool {
	return len(d.Missing()) == 0
}

// HasSlot reports whether availability has been chosen.
func (d BookingDraft) HasSlot() bool {
	return d.StaffMember != nil && d.Start != nil && d.End != nil && d.TimeZone != nil && *d.TimeZone != ""
}

func (d BookingDraft) IsEmpty() bool {
	return d.Service == nil && d.StaffMember == nil && d.Start == nil &&
		d.End == nil && d.TimeZone == nil && d.Comments == nil
}

func (d BookingDraft) CommentsText() string {
	if d.Comments == nil {
		return ""
	}
	return *d.Comments
}

func (d BookingDraft) Zone() string {
	if d.TimeZone == nil {
		return ""
	}
	return *d.TimeZone
}

// DraftSnapshot is the persisted form of a session's wizard state.
type DraftSnapshot struct {
	SessionID      int64        `json:"session_id"`
	CurrentStep    Step         `json:"current_step"`
	Draft          BookingDraft `json:"draft"`
	IdempotencyKey string       `json:"idempotency_key"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Ptr returns a pointer to v; handy for building draft patches.
func Ptr[T any](v T) *T {
	return &v
}
