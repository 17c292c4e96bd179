package caremanager

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is a recurring weekly open window, not a calendar entry.
// Start and End are TimeLayout ("15:04") wall-clock strings.
type AvailabilitySlot struct {
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
}

// CareManager is read-only shared reference data: the scheduler consults
// availability but never mutates it.
type CareManager struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name         string             `gorm:"column:name;type:varchar(100);uniqueIndex;not null"`
	Availability []AvailabilitySlot `gorm:"column:availability;serializer:json"`
}

func (CareManager) TableName() string {
	return "activation.care_managers"
}

// WindowsFor returns the availability windows recurring on the given weekday.
// A manager with no windows that day yields an empty slice, not an error.
func (m *CareManager) WindowsFor(day time.Weekday) []AvailabilitySlot {
	var windows []AvailabilitySlot
	for _, slot := range m.Availability {
		if slot.Weekday == day {
			windows = append(windows, slot)
		}
	}
	return windows
}
