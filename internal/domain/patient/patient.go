package patient

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain/program"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// Wall-clock layouts used for appointment and follow-up fields. These are
// deliberately naive local strings, not time.Time values: slot conflict
// detection compares ISO prefixes exactly on the minute, so callers must
// pass already-normalized values in these layouts.
const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	StampLayout = "2006-01-02T15:04"
)

// Stamp combines a DateLayout date and a TimeLayout time into the ISO
// wall-clock stamp stored on appointment and follow-up fields.
func Stamp(date, clock string) string {
	return date + "T" + clock
}

type ContactInfo struct {
	Email     string `gorm:"column:email;type:varchar(255)"`
	Phone     string `gorm:"column:phone;type:varchar(20)"`
	HomePhone string `gorm:"column:home_phone;type:varchar(20)"`
	ZipCode   string `gorm:"column:zip_code;type:varchar(20)"`
}

// Patient is a roster entry moving through the activation funnel. Status and
// EligiblePrograms are engine-owned: status changes only through the
// transition table in status.go, and EligiblePrograms is always the
// eligibility engine's output for the current ConditionCodes, never
// hand-edited.
type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"` // Soft delete only; records never leave the roster

	MRN         string    `gorm:"column:mrn;type:varchar(50);uniqueIndex"`
	Name        string    `gorm:"column:name;type:varchar(200);not null"`
	DateOfBirth time.Time `gorm:"column:date_of_birth"`
	Gender      Gender    `gorm:"column:gender;type:varchar(20)"`

	ContactInfo

	Insurance   string `gorm:"column:insurance;type:varchar(100)"`
	ProviderNPI string `gorm:"column:provider_npi;type:varchar(20)"`

	ConditionCodes []string   `gorm:"column:condition_codes;serializer:json"`
	LastVisitDate  *time.Time `gorm:"column:last_visit_date"`

	Status           Status       `gorm:"column:status;type:varchar(40);not null;index"`
	EligiblePrograms []program.ID `gorm:"column:eligible_programs;serializer:json"`

	// CareManager holds the assigned care manager's display name; empty
	// means unassigned.
	CareManager string `gorm:"column:care_manager;type:varchar(100);index"`

	CallLogs []CallLog `gorm:"column:call_logs;serializer:json"`

	// StampLayout wall-clock strings; empty means unset.
	CallAttemptDate string `gorm:"column:call_attempt_date;type:varchar(20)"`
	NextCallDate    string `gorm:"column:next_call_date;type:varchar(20);index"`
	AppointmentDate string `gorm:"column:appointment_date;type:varchar(20);index"`

	EnrollmentDate *time.Time `gorm:"column:enrollment_date"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid"`
}

func (Patient) TableName() string {
	return "activation.patients"
}

func (p *Patient) Age() int {
	now := time.Now()
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	return years
}

// InPipeline reports whether the patient is past approval and being actively
// worked (outreach, consent, scheduling, shipping).
func (p *Patient) InPipeline() bool {
	switch p.Status {
	case StatusApproved, StatusOutreachFirst, StatusOutreachSecond,
		StatusConsentSent, StatusScheduledWithCM, StatusDeviceShipped:
		return true
	}
	return false
}

// AppendCallLog records a call in caller-supplied order.
func (p *Patient) AppendCallLog(log CallLog) {
	p.CallLogs = append(p.CallLogs, log)
}

// CallHistory returns the call logs sorted by timestamp descending, the
// canonical display order. The receiver's slice is not modified.
func (p *Patient) CallHistory() []CallLog {
	history := make([]CallLog, len(p.CallLogs))
	copy(history, p.CallLogs)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	return history
}

// Outcome is the disposition of an outreach call, as recorded by the
// coordinator.
type Outcome string

const (
	OutcomeInterested    Outcome = "Connected - Interested"
	OutcomeNotInterested Outcome = "Connected - Not Interested"
	OutcomeCallBackLater Outcome = "Connected - Call Back Later"
	OutcomeNoAnswer      Outcome = "No Answer / Voicemail"
	OutcomeWrongNumber   Outcome = "Wrong Number"
	OutcomeDoNotCall     Outcome = "DNC (Do Not Call)"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeInterested, OutcomeNotInterested, OutcomeCallBackLater,
		OutcomeNoAnswer, OutcomeWrongNumber, OutcomeDoNotCall:
		return true
	}
	return false
}

// CallLog is one append-only entry in a patient's outreach history, owned
// exclusively by its patient.
type CallLog struct {
	ID          uuid.UUID   `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Outcome     Outcome     `json:"outcome"`
	Notes       string      `json:"notes"`
	NextAction  *NextAction `json:"next_action,omitempty"`
	PerformedBy string      `json:"performed_by"`
}

type NextActionKind string

const (
	NextActionAppointment NextActionKind = "appointment"
	NextActionFollowUp    NextActionKind = "followup"
)

// NextAction is the plan attached to a call outcome. An appointment action
// books the patient with a care manager; a follow-up action only plans the
// next call.
type NextAction struct {
	Kind          NextActionKind `json:"kind"`
	Date          string         `json:"date"` // DateLayout
	Time          string         `json:"time"` // TimeLayout
	CareManagerID *uuid.UUID     `json:"care_manager_id,omitempty"`
}

func (a *NextAction) IsValid() bool {
	if a == nil {
		return false
	}
	if a.Kind != NextActionAppointment && a.Kind != NextActionFollowUp {
		return false
	}
	if _, err := time.Parse(DateLayout, a.Date); err != nil {
		return false
	}
	if _, err := time.Parse(TimeLayout, a.Time); err != nil {
		return false
	}
	return true
}

type CreatePatientCommand struct {
	MRN            string
	Name           string
	DateOfBirth    time.Time
	Gender         Gender
	ZipCode        string
	Insurance      string
	ProviderNPI    string
	LastVisitDate  *time.Time
	ConditionCodes []string
	Email          string
	Phone          string
	HomePhone      string
	CreatedBy      uuid.UUID
}

type ListPatientsQuery struct {
	Search      string // substring match on name
	Status      *Status
	CareManager string
	Page        int
	PageSize    int
}

type PagedPatients struct {
	Patients   []*Patient
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// ParseCodes splits a comma-delimited ICD-10 list into trimmed, de-duplicated
// codes, preserving first-seen order. Empty entries are dropped.
func ParseCodes(raw string) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, part := range strings.Split(raw, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}
