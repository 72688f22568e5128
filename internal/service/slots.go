package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/models"
	"bookflow/internal/timeutil"
)

// Period is a time-of-day bucket.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

func (p Period) Title() string {
	switch p {
	case PeriodMorning:
		return "Morning"
	case PeriodAfternoon:
		return "Afternoon"
	case PeriodEvening:
		return "Evening"
	default:
		return string(p)
	}
}

// PeriodForHour maps a local wall-clock hour: [0,12) morning, [12,18) afternoon, [18,24) evening.
func PeriodForHour(hour int) Period {
	switch {
	case hour < 12:
		return PeriodMorning
	case hour < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// SlotGroups partitions slots by the local hour of their start.
type SlotGroups struct {
	Morning   []models.AvailableSlot
	Afternoon []models.AvailableSlot
	Evening   []models.AvailableSlot
}

// SlotSection is one non-empty bucket ready for rendering.
type SlotSection struct {
	Period Period
	Slots  []models.AvailableSlot
}

// GroupSlots buckets slots by local start hour in zone, preserving input order
// within each bucket. It is pure.
func GroupSlots(slots []models.AvailableSlot, zone string) (SlotGroups, error) {
	loc, err := timeutil.LoadZone(zone)
	if err != nil {
		return SlotGroups{}, err
	}

	var groups SlotGroups
	for _, slot := range slots {
		switch PeriodForHour(slot.StartTimeUTC.In(loc).Hour()) {
		case PeriodMorning:
			groups.Morning = append(groups.Morning, slot)
		case PeriodAfternoon:
			groups.Afternoon = append(groups.Afternoon, slot)
		default:
			groups.Evening = append(groups.Evening, slot)
		}
	}
	return groups, nil
}

// Sections returns the non-empty buckets in Morning, Afternoon, Evening order.
func (g SlotGroups) Sections() []SlotSection {
	sections := make([]SlotSection, 0, 3)
	for _, s := range []SlotSection{
		{Period: PeriodMorning, Slots: g.Morning},
		{Period: PeriodAfternoon, Slots: g.Afternoon},
		{Period: PeriodEvening, Slots: g.Evening},
	} {
		if len(s.Slots) > 0 {
			sections = append(sections, s)
		}
	}
	return sections
}

func (g SlotGroups) Len() int {
	return len(g.Morning) + len(g.Afternoon) + len(g.Evening)
}

// StaffPicker chooses who serves a slot when several staff are eligible.
// preferredID, when non-empty and eligible, must be honoured.
type StaffPicker interface {
	Pick(slot models.AvailableSlot, preferredID string) (models.StaffMember, error)
}

func preferred(slot models.AvailableSlot, preferredID string) (models.StaffMember, bool) {
	if preferredID == "" {
		return models.StaffMember{}, false
	}
	for _, m := range slot.AvailableStaff {
		if m.ID == preferredID {
			return m, true
		}
	}
	return models.StaffMember{}, false
}

// RandomStaffPicker picks uniformly among eligible staff.
type RandomStaffPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStaffPicker seeds the picker; a zero seed uses the clock.
func NewRandomStaffPicker(seed uint64) *RandomStaffPicker {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomStaffPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomStaffPicker) Pick(slot models.AvailableSlot, preferredID string) (models.StaffMember, error) {
	if len(slot.AvailableStaff) == 0 {
		return models.StaffMember{}, ErrNoEligibleStaff
	}
	if m, ok := preferred(slot, preferredID); ok {
		return m, nil
	}
	p.mu.Lock()
	i := p.rng.IntN(len(slot.AvailableStaff))
	p.mu.Unlock()
	return slot.AvailableStaff[i], nil
}

// FirstStaffPicker always takes the first eligible staff member.
type FirstStaffPicker struct{}

func (FirstStaffPicker) Pick(slot models.AvailableSlot, preferredID string) (models.StaffMember, error) {
	if len(slot.AvailableStaff) == 0 {
		return models.StaffMember{}, ErrNoEligibleStaff
	}
	if m, ok := preferred(slot, preferredID); ok {
		return m, nil
	}
	return slot.AvailableStaff[0], nil
}

// NewStaffPicker maps the booking.staff_assignment setting to a picker.
func NewStaffPicker(policy string) StaffPicker {
	if policy == config.StaffAssignmentFirst {
		return FirstStaffPicker{}
	}
	return NewRandomStaffPicker(0)
}

// SlotSelection tracks the single selected slot within one availability result.
type SlotSelection struct {
	draft  *DraftStore
	picker StaffPicker

	mu       sync.Mutex
	result   *AvailabilityResult
	selected *models.AvailableSlot
}

func NewSlotSelection(draft *DraftStore, picker StaffPicker) *SlotSelection {
	if picker == nil {
		picker = NewRandomStaffPicker(0)
	}
	return &SlotSelection{draft: draft, picker: picker}
}

// Bind scopes the selection to a new result set and clears any prior choice.
func (s *SlotSelection) Bind(result *AvailabilityResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.selected = nil
}

// Clear drops the selection and the bound result set.
func (s *SlotSelection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
	s.selected = nil
}

// Select makes slot the only selected slot and synchronously writes start, end,
// time zone and staff member into the draft.
func (s *SlotSelection) Select(slot models.AvailableSlot) (models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil || !containsSlot(s.result.Slots, slot) {
		if err := checkSlot(slot); err != nil {
			return models.StaffMember{}, err
		}
		return models.StaffMember{}, ErrSlotNotInResult
	}
	return s.selectLocked(slot)
}

// SelectIndex selects the i-th slot of the bound result in server order.
func (s *SlotSelection) SelectIndex(i int) (models.AvailableSlot, models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectIndexLocked(i)
}

// SelectAt is SelectIndex for a caller that rendered the slots from a specific
// result. If another result has been bound since, it fails with ErrStaleResult
// and leaves the draft untouched.
func (s *SlotSelection) SelectAt(generation uint64, i int) (models.AvailableSlot, models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil || s.result.Generation != generation {
		return models.AvailableSlot{}, models.StaffMember{}, ErrStaleResult
	}
	return s.selectIndexLocked(i)
}

func (s *SlotSelection) selectIndexLocked(i int) (models.AvailableSlot, models.StaffMember, error) {
	if s.result == nil || i < 0 || i >= len(s.result.Slots) {
		return models.AvailableSlot{}, models.StaffMember{}, ErrSlotNotInResult
	}
	slot := s.result.Slots[i]
	member, err := s.selectLocked(slot)
	return slot, member, err
}

// selectLocked requires s.mu and a slot taken from s.result.
func (s *SlotSelection) selectLocked(slot models.AvailableSlot) (models.StaffMember, error) {
	if err := checkSlot(slot); err != nil {
		return models.StaffMember{}, err
	}

	preferredID := s.result.Params.StaffID
	if preferredID == "" {
		if current := s.draft.Draft().StaffMember; current != nil {
			preferredID = current.ID
		}
	}
	member, err := s.picker.Pick(slot, preferredID)
	if err != nil {
		return models.StaffMember{}, err
	}

	start := slot.StartTimeUTC.UTC()
	end := slot.EndTimeUTC.UTC()
	s.draft.UpdateState(models.BookingDraft{
		Start:       &start,
		End:         &end,
		TimeZone:    models.Ptr(s.result.Params.TimeZone),
		StaffMember: &member,
	})

	chosen := slot
	s.selected = &chosen
	return member, nil
}

// Selected returns the selected slot, if any.
func (s *SlotSelection) Selected() (models.AvailableSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return models.AvailableSlot{}, false
	}
	return *s.selected, true
}

// Generation identifies the result set the selection is bound to; zero when unbound.
func (s *SlotSelection) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return 0
	}
	return s.result.Generation
}

func checkSlot(slot models.AvailableSlot) error {
	if !slot.StartTimeUTC.Before(slot.EndTimeUTC) {
		return validationError("slot", "start must be before end")
	}
	if len(slot.AvailableStaff) == 0 {
		return ErrNoEligibleStaff
	}
	return nil
}

func containsSlot(slots []models.AvailableSlot, slot models.AvailableSlot) bool {
	key := slot.Key()
	for _, candidate := range slots {
		if candidate.Key() == key {
			return true
		}
	}
	return false
}
