package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/eligibility"
)

// EligibilityService owns the roster's engine-derived fields: a patient's
// eligible programs are always the evaluation of their current condition
// codes, recomputed here and never hand-edited.
type EligibilityService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewEligibilityService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *EligibilityService {
	return &EligibilityService{repo: repo, auditSvc: auditSvc, log: log}
}

// RegisterPatient creates a roster entry, evaluates it, and seeds the status
// from the evaluation hint.
func (s *EligibilityService) RegisterPatient(ctx context.Context, cmd *patient.CreatePatientCommand, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, *eligibility.Result, error) {
	if err := validateCreateCommand(cmd); err != nil {
		return nil, nil, err
	}

	p := &patient.Patient{
		MRN:         strings.TrimSpace(cmd.MRN),
		Name:        strings.TrimSpace(cmd.Name),
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
		ContactInfo: patient.ContactInfo{
			Email:     strings.ToLower(strings.TrimSpace(cmd.Email)),
			Phone:     strings.TrimSpace(cmd.Phone),
			HomePhone: strings.TrimSpace(cmd.HomePhone),
			ZipCode:   strings.TrimSpace(cmd.ZipCode),
		},
		Insurance:      cmd.Insurance,
		ProviderNPI:    cmd.ProviderNPI,
		ConditionCodes: cmd.ConditionCodes,
		LastVisitDate:  cmd.LastVisitDate,
		CreatedBy:      cmd.CreatedBy,
	}

	result := evaluate(p)
	p.EligiblePrograms = result.EligibleIDs()
	p.Status = result.StatusHint

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, nil, fmt.Errorf("creating patient: %w", err)
	}
	result.PatientID = p.ID.String()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "patient",
		ResourceID:   p.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("patient registered",
		zap.String("patient_id", p.ID.String()),
		zap.String("status", string(p.Status)),
		zap.Int("eligible_programs", len(p.EligiblePrograms)),
	)

	return p, result, nil
}

// Evaluate re-runs the rules for a roster patient and writes the derived
// fields back. The status is re-seeded only while the patient is still
// pre-funnel; a patient mid-outreach keeps their pipeline position even if
// their code list changed.
func (s *EligibilityService) Evaluate(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*eligibility.Result, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := evaluate(p)
	p.EligiblePrograms = result.EligibleIDs()
	if p.Status == patient.StatusPendingApproval || p.Status == patient.StatusNotApproved {
		p.Status = result.StatusHint
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "update",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"eligible_programs":%d}`, len(p.EligiblePrograms)),
	})

	return result, nil
}

// GetPatient fetches one roster entry.
func (s *EligibilityService) GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPatients returns a filtered roster page.
func (s *EligibilityService) ListPatients(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func evaluate(p *patient.Patient) *eligibility.Result {
	return eligibility.Evaluate(eligibility.Input{
		PatientID:   p.ID.String(),
		DisplayName: p.Name,
		Insurance:   p.Insurance,
		Codes:       p.ConditionCodes,
		LastVisit:   p.LastVisitDate,
	})
}

func validateCreateCommand(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.MRN) == "" {
		errs = append(errs, "mrn is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, "date_of_birth cannot be in the future")
	}
	if cmd.Gender != "" && !cmd.Gender.IsValid() {
		errs = append(errs, "gender is invalid")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
