package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/notify"
	"github.com/iterahealth/activation-engine/internal/scheduler"
)

// ActivationService drives patients through the enrollment funnel. Every
// status change goes through the transition table; invalid requests no-op
// rather than fail, because the portal gates which actions it offers per
// state.
type ActivationService struct {
	repo               patient.Repository
	managerRepo        caremanager.Repository
	auditSvc           *AuditService
	notifier           notify.Notifier
	log                *zap.Logger
	defaultCareManager string

	// bookings serializes the check-then-commit sequence per care manager
	// so two concurrent requests for the same slot cannot both win.
	bookings keyedMutex
}

func NewActivationService(
	repo patient.Repository,
	managerRepo caremanager.Repository,
	auditSvc *AuditService,
	notifier notify.Notifier,
	defaultCareManager string,
	log *zap.Logger,
) *ActivationService {
	return &ActivationService{
		repo:               repo,
		managerRepo:        managerRepo,
		auditSvc:           auditSvc,
		notifier:           notifier,
		log:                log,
		defaultCareManager: defaultCareManager,
	}
}

// LogCallCommand captures one outreach call and its optional next action.
type LogCallCommand struct {
	Outcome     patient.Outcome
	Notes       string
	NextAction  *patient.NextAction
	PerformedBy string
}

// Approve moves the listed patients into the funnel. Patients whose status
// does not admit approval are left untouched; the returned slice holds the
// ones that changed.
func (s *ActivationService) Approve(ctx context.Context, ids []uuid.UUID, callerID uuid.UUID, callerRole, ip string) ([]*patient.Patient, error) {
	var approved []*patient.Patient
	for _, id := range ids {
		p, err := s.transition(ctx, id, patient.EventApprove, callerID, callerRole, ip)
		if err != nil {
			return approved, err
		}
		if p != nil {
			approved = append(approved, p)
		}
	}
	return approved, nil
}

// Reject excludes a patient from the funnel.
func (s *ActivationService) Reject(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	p, err := s.transition(ctx, id, patient.EventReject, callerID, callerRole, ip)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s.repo.GetByID(ctx, id)
	}
	return p, nil
}

// Reset reopens a case: any non-pending state returns to Pending Approval.
func (s *ActivationService) Reset(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	p, err := s.transition(ctx, id, patient.EventReset, callerID, callerRole, ip)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s.repo.GetByID(ctx, id)
	}
	return p, nil
}

// MarkDeviceShipped records device fulfilment for a scheduled patient.
func (s *ActivationService) MarkDeviceShipped(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	p, err := s.transition(ctx, id, patient.EventDeviceShipped, callerID, callerRole, ip)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s.repo.GetByID(ctx, id)
	}
	return p, nil
}

// MarkActive completes the funnel and stamps the enrollment date.
func (s *ActivationService) MarkActive(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := p.Status
	if p.Apply(patient.EventActivated) {
		now := time.Now()
		p.EnrollmentDate = &now
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("saving patient: %w", err)
		}
		s.audit(ctx, callerID, callerRole, ip, "update", p.ID, fmt.Sprintf(`{"status":%q}`, p.Status))
		s.notifier.StatusChanged(ctx, p, from, p.Status)
	}
	return p, nil
}

// LogCallOutcome appends a call log and advances the funnel. Attempt
// escalation moves Approved to a first outreach attempt and a first to a
// second; later calls stay at the second attempt. A next action booking an
// appointment overrides the escalation outcome entirely.
func (s *ActivationService) LogCallOutcome(ctx context.Context, id uuid.UUID, cmd *LogCallCommand, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	if !cmd.Outcome.IsValid() {
		return nil, patient.ErrInvalidOutcome
	}
	if cmd.NextAction != nil && !cmd.NextAction.IsValid() {
		return nil, patient.ErrInvalidNextAction
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := p.Status
	now := time.Now()

	p.AppendCallLog(patient.CallLog{
		ID:          uuid.New(),
		Timestamp:   now,
		Outcome:     cmd.Outcome,
		Notes:       cmd.Notes,
		NextAction:  cmd.NextAction,
		PerformedBy: cmd.PerformedBy,
	})
	p.CallAttemptDate = now.Format(patient.StampLayout)
	p.Apply(patient.EventCallLogged)

	if cmd.NextAction != nil && cmd.NextAction.Kind == patient.NextActionAppointment {
		// bookAppointment commits under the booking lock so the slot check
		// and the save are one atomic step.
		if err := s.bookAppointment(ctx, p, cmd.NextAction); err != nil {
			return nil, err
		}
	} else {
		if cmd.NextAction != nil && cmd.NextAction.Kind == patient.NextActionFollowUp {
			p.NextCallDate = patient.Stamp(cmd.NextAction.Date, cmd.NextAction.Time)
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("saving patient: %w", err)
		}
	}

	s.audit(ctx, callerID, callerRole, ip, "call_log", p.ID,
		fmt.Sprintf(`{"outcome":%q,"status":%q}`, cmd.Outcome, p.Status))
	if p.Status != from {
		s.notifier.StatusChanged(ctx, p, from, p.Status)
	}

	s.log.Info("call outcome recorded",
		zap.String("patient_id", p.ID.String()),
		zap.String("outcome", string(cmd.Outcome)),
		zap.String("status", string(p.Status)),
	)

	return p, nil
}

// Schedule is the direct scheduling path that bypasses call logging: it books
// the slot, marks consent sent, and assigns the default care manager when
// none is set.
func (s *ActivationService) Schedule(ctx context.Context, id uuid.UUID, date, clock string, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	action := &patient.NextAction{Kind: patient.NextActionAppointment, Date: date, Time: clock}
	if !action.IsValid() {
		return nil, patient.ErrInvalidNextAction
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Same defensive no-op policy as every transition: a patient outside
	// the funnel keeps their status and nothing is committed.
	if patient.Next(p.Status, patient.EventConsentScheduled) == p.Status {
		return p, nil
	}

	from := p.Status
	managerName := p.CareManager
	if managerName == "" {
		managerName = s.defaultCareManager
	}

	unlock := s.bookings.lock(managerName)
	defer unlock()

	if err := s.checkSlotFree(ctx, p.ID, managerName, date, clock); err != nil {
		return nil, err
	}

	p.AppointmentDate = patient.Stamp(date, clock)
	if p.CareManager == "" {
		p.CareManager = managerName
	}
	p.Apply(patient.EventConsentScheduled)

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving patient: %w", err)
	}

	s.audit(ctx, callerID, callerRole, ip, "schedule", p.ID,
		fmt.Sprintf(`{"appointment":%q,"care_manager":%q}`, p.AppointmentDate, p.CareManager))
	s.notifier.StatusChanged(ctx, p, from, p.Status)

	return p, nil
}

// bookAppointment resolves the care manager, then checks, books, and saves
// while holding the manager's booking lock, so no concurrent caller can pass
// the slot check between our check and our commit. The appointment always
// lands on the patient's existing assignment when one exists, so the check
// and lock run against that calendar; only a brand-new assignment takes the
// action's resolved manager.
func (s *ActivationService) bookAppointment(ctx context.Context, p *patient.Patient, action *patient.NextAction) error {
	managerName, err := s.resolveManagerName(ctx, p, action)
	if err != nil {
		return err
	}

	unlock := s.bookings.lock(managerName)
	defer unlock()

	if err := s.checkSlotFree(ctx, p.ID, managerName, action.Date, action.Time); err != nil {
		return err
	}

	p.AppointmentDate = patient.Stamp(action.Date, action.Time)
	if p.CareManager == "" {
		p.CareManager = managerName
	}
	p.Apply(patient.EventAppointmentBooked)

	if err := s.repo.Save(ctx, p); err != nil {
		return fmt.Errorf("saving patient: %w", err)
	}
	return nil
}

// resolveManagerName returns the name of the calendar the appointment will
// commit under. An existing assignment wins over the action's manager, so
// the slot check never runs against a calendar other than the one booked.
func (s *ActivationService) resolveManagerName(ctx context.Context, p *patient.Patient, action *patient.NextAction) (string, error) {
	if p.CareManager != "" {
		return p.CareManager, nil
	}
	if action.CareManagerID != nil {
		m, err := s.managerRepo.GetByID(ctx, *action.CareManagerID)
		if err != nil {
			return "", fmt.Errorf("resolving care manager: %w", err)
		}
		return m.Name, nil
	}
	return s.defaultCareManager, nil
}

// checkSlotFree scans the roster for a committed appointment on the exact
// (manager, date, minute) triple. Must be called with the manager's booking
// lock held.
func (s *ActivationService) checkSlotFree(ctx context.Context, selfID uuid.UUID, managerName, date, clock string) error {
	roster, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	stamp := patient.Stamp(date, clock)
	for _, other := range roster {
		if other.ID == selfID {
			continue
		}
		if other.CareManager == managerName && other.AppointmentDate == stamp {
			return fmt.Errorf("%w: held by %s", ErrSlotTaken, other.Name)
		}
	}
	return nil
}

// DaySlots reports the bookable 45-minute slots for a care manager on a
// date, with collisions marked. excludePatient (may be uuid.Nil) is the
// patient being scheduled, so rescheduling does not collide with itself.
func (s *ActivationService) DaySlots(ctx context.Context, managerID uuid.UUID, date string, excludePatient uuid.UUID) ([]scheduler.Slot, error) {
	m, err := s.managerRepo.GetByID(ctx, managerID)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return scheduler.DaySlots(m, date, roster, excludePatient)
}

func (s *ActivationService) GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// transition applies a single event and persists on change. Returns nil
// (no error) when the event was a no-op for the current state.
func (s *ActivationService) transition(ctx context.Context, id uuid.UUID, ev patient.Event, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := p.Status
	if !p.Apply(ev) {
		return nil, nil
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving patient: %w", err)
	}

	s.audit(ctx, callerID, callerRole, ip, string(ev), p.ID,
		fmt.Sprintf(`{"from":%q,"to":%q}`, from, p.Status))
	s.notifier.StatusChanged(ctx, p, from, p.Status)

	return p, nil
}

func (s *ActivationService) audit(ctx context.Context, callerID uuid.UUID, callerRole, ip, action string, patientID uuid.UUID, changes string) {
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       action,
		ResourceType: "patient",
		ResourceID:   patientID.String(),
		IPAddress:    ip,
		Changes:      changes,
	})
}

// keyedMutex hands out one mutex per key. Keys are never evicted; the key
// space here is care manager names, which is small and stable.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
