package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
)

// intakeColumns is the expected CSV header, in order. The ICD10_Codes column
// is a quoted, comma-separated list fed verbatim into the eligibility engine.
var intakeColumns = []string{
	"MRN", "Name", "DOB", "Gender", "ZipCode", "Insurance",
	"Provider_NPI", "Last_Visit_Date", "ICD10_Codes", "Email", "Phone", "Home_Phone",
}

// dateLayouts are the accepted forms for DOB and Last_Visit_Date, tried in
// order.
var dateLayouts = []string{"2006-01-02", "01/02/2006"}

// ImportSummary reports what happened to each row class. Malformed rows are
// skipped at this boundary and never reach the engine.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// IntakeService turns practice CSV exports into evaluated roster entries.
type IntakeService struct {
	eligibilitySvc *EligibilityService
	auditSvc       *AuditService
	log            *zap.Logger
}

func NewIntakeService(eligibilitySvc *EligibilityService, auditSvc *AuditService, log *zap.Logger) *IntakeService {
	return &IntakeService{eligibilitySvc: eligibilitySvc, auditSvc: auditSvc, log: log}
}

// ImportCSV reads an intake file and registers each well-formed row. Rows
// that fail to parse, or that duplicate an existing MRN, are skipped and
// reported; a bad row never aborts the batch.
func (s *IntakeService) ImportCSV(ctx context.Context, r io.Reader, callerID uuid.UUID, callerRole, ip string) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}

		cmd, err := parseIntakeRow(record, callerID)
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row, err))
			s.log.Warn("skipping malformed intake row", zap.Int("row", row), zap.Error(err))
			continue
		}

		if _, _, err := s.eligibilitySvc.RegisterPatient(ctx, cmd, callerID, callerRole, ip); err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		summary.Imported++
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "import",
		ResourceType: "roster",
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"imported":%d,"skipped":%d}`, summary.Imported, summary.Skipped),
	})

	s.log.Info("intake import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

func validateHeader(header []string) error {
	if len(header) < len(intakeColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(intakeColumns), len(header))
	}
	for i, want := range intakeColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}

func parseIntakeRow(record []string, createdBy uuid.UUID) (*patient.CreatePatientCommand, error) {
	if len(record) < len(intakeColumns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(intakeColumns), len(record))
	}

	field := func(i int) string { return strings.TrimSpace(record[i]) }

	mrn, name := field(0), field(1)
	if mrn == "" {
		return nil, patient.ErrMRNRequired
	}
	if name == "" {
		return nil, errors.New("name is required")
	}

	dob, err := parseDate(field(2))
	if err != nil {
		return nil, fmt.Errorf("DOB: %w", err)
	}

	gender := patient.Gender(strings.ToLower(field(3)))
	if gender == "" {
		gender = patient.GenderUnknown
	}
	if !gender.IsValid() {
		return nil, patient.ErrInvalidGender
	}

	var lastVisit *time.Time
	if raw := field(7); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("Last_Visit_Date: %w", err)
		}
		lastVisit = &t
	}

	return &patient.CreatePatientCommand{
		MRN:            mrn,
		Name:           name,
		DateOfBirth:    dob,
		Gender:         gender,
		ZipCode:        field(4),
		Insurance:      field(5),
		ProviderNPI:    field(6),
		LastVisitDate:  lastVisit,
		ConditionCodes: patient.ParseCodes(field(8)),
		Email:          field(9),
		Phone:          field(10),
		HomePhone:      field(11),
		CreatedBy:      createdBy,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
