// Package scheduler turns a care manager's recurring weekly availability into
// bookable fixed-duration slots for a concrete date and flags collisions with
// appointments already committed on the roster.
//
// The scheduler only reports availability; it holds no lock and rejects
// nothing. Callers decide whether a reserved slot blocks the booking, and a
// concurrent deployment must serialize the check-then-commit sequence around
// it (see service.ActivationService).
package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
)

// SlotMinutes is the fixed length of every bookable slot.
const SlotMinutes = 45

// Slot is one bookable start time. A reserved slot is still reported, with
// the conflicting patient's name attached, so operators can see why a time is
// unavailable instead of it silently missing.
type Slot struct {
	Time       string `json:"time"` // patient.TimeLayout start
	Reserved   bool   `json:"is_reserved"`
	ReservedBy string `json:"reserved_by,omitempty"`
}

// DaySlots computes the slots for one care manager on one date. The roster is
// scanned for committed appointments colliding on (date, time, manager name);
// the patient identified by exclude is skipped so rescheduling does not
// collide with itself. Matching is exact on the minute using the ISO
// wall-clock prefix, so inputs must be normalized local strings.
//
// A manager with no availability windows on the date's weekday yields an
// empty slice: no slots is a valid answer, not a failure.
func DaySlots(cm *caremanager.CareManager, date string, roster []*patient.Patient, exclude uuid.UUID) ([]Slot, error) {
	day, err := time.Parse(patient.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}

	var slots []Slot
	for _, window := range cm.WindowsFor(day.Weekday()) {
		start, err := parseClock(window.Start)
		if err != nil {
			return nil, fmt.Errorf("availability window start: %w", err)
		}
		end, err := parseClock(window.End)
		if err != nil {
			return nil, fmt.Errorf("availability window end: %w", err)
		}

		// A slot that would spill past the window's end is dropped, not
		// truncated.
		for at := start; at+SlotMinutes <= end; at += SlotMinutes {
			slot := Slot{Time: formatClock(at)}
			if name := reservedBy(roster, cm.Name, date, slot.Time, exclude); name != "" {
				slot.Reserved = true
				slot.ReservedBy = name
			}
			slots = append(slots, slot)
		}
	}

	return slots, nil
}

// reservedBy scans the roster for a committed appointment at the exact
// (date, time, manager) triple and returns the holder's name, or "".
func reservedBy(roster []*patient.Patient, managerName, date, clock string, exclude uuid.UUID) string {
	stamp := patient.Stamp(date, clock)
	for _, p := range roster {
		if p.ID == exclude {
			continue
		}
		if p.CareManager == managerName && p.AppointmentDate == stamp {
			return p.Name
		}
	}
	return ""
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(patient.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
