// Package program enumerates the care-management offerings a patient can be
// activated into. The set is closed: adding a program is a compile-time
// change, not a data edit.
package program

type ID string

const (
	CCM  ID = "CCM"  // Chronic Care Management
	RPM  ID = "RPM"  // Remote Patient Monitoring
	PCM  ID = "PCM"  // Principal Care Management
	APCM ID = "APCM" // Advanced Primary Care Management
	BHI  ID = "BHI"  // Behavioral Health Integration
)

// All lists every known program in evaluation order.
func All() []ID {
	return []ID{CCM, RPM, PCM, APCM, BHI}
}

func (id ID) IsValid() bool {
	switch id {
	case CCM, RPM, PCM, APCM, BHI:
		return true
	}
	return false
}

// Name returns the full display name of the program.
func (id ID) Name() string {
	switch id {
	case CCM:
		return "Chronic Care Management"
	case RPM:
		return "Remote Patient Monitoring"
	case PCM:
		return "Principal Care Management"
	case APCM:
		return "Advanced Primary Care Management"
	case BHI:
		return "Behavioral Health Integration"
	}
	return string(id)
}
