package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/notify"
	"github.com/iterahealth/activation-engine/internal/repository/memory"
)

type activationFixture struct {
	svc      *ActivationService
	patients *memory.PatientRepository
	managers *memory.CareManagerRepository
}

func newActivationFixture(t *testing.T) *activationFixture {
	t.Helper()
	log := zap.NewNop()

	patients := memory.NewPatientRepository()
	managers := memory.NewCareManagerRepository()
	managers.Seed(memory.DefaultRoster())

	auditSvc := NewAuditService(memory.NewAuditRepository(), newTestCollector(), log)
	t.Cleanup(auditSvc.Shutdown)

	svc := NewActivationService(patients, managers, auditSvc, notify.NewLogNotifier(log), "Ana Smith", log)
	return &activationFixture{svc: svc, patients: patients, managers: managers}
}

func (f *activationFixture) seedPatient(t *testing.T, status patient.Status) *patient.Patient {
	t.Helper()
	p := &patient.Patient{
		MRN:    "MRN-" + uuid.NewString()[:8],
		Name:   "Test Patient",
		Status: status,
	}
	if err := f.patients.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

var testCaller = uuid.New()

func TestApproveBatch(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()

	pending := f.seedPatient(t, patient.StatusPendingApproval)
	active := f.seedPatient(t, patient.StatusActive)

	approved, err := f.svc.Approve(ctx, []uuid.UUID{pending.ID, active.ID}, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}

	if len(approved) != 1 || approved[0].ID != pending.ID {
		t.Fatalf("approved = %v, want only the pending patient", approved)
	}
	if approved[0].Status != patient.StatusApproved {
		t.Errorf("status = %q, want %q", approved[0].Status, patient.StatusApproved)
	}

	// The active patient is untouched.
	got, err := f.patients.GetByID(ctx, active.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusActive {
		t.Errorf("active patient status = %q, want unchanged", got.Status)
	}
}

func TestLogCallEscalation(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusApproved)

	cmd := &LogCallCommand{Outcome: patient.OutcomeNoAnswer, Notes: "left voicemail", PerformedBy: "coordinator@example.com"}

	got, err := f.svc.LogCallOutcome(ctx, p.ID, cmd, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusOutreachFirst {
		t.Fatalf("after first call status = %q", got.Status)
	}
	if len(got.CallLogs) != 1 {
		t.Fatalf("call logs = %d, want 1", len(got.CallLogs))
	}
	if got.CallAttemptDate == "" {
		t.Error("CallAttemptDate not set")
	}

	got, err = f.svc.LogCallOutcome(ctx, p.ID, cmd, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusOutreachSecond {
		t.Fatalf("after second call status = %q", got.Status)
	}

	// Third call plateaus but is still recorded.
	got, err = f.svc.LogCallOutcome(ctx, p.ID, cmd, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusOutreachSecond {
		t.Errorf("after third call status = %q, want plateau", got.Status)
	}
	if len(got.CallLogs) != 3 {
		t.Errorf("call logs = %d, want 3", len(got.CallLogs))
	}
}

func TestLogCallInvalidOutcome(t *testing.T) {
	f := newActivationFixture(t)
	p := f.seedPatient(t, patient.StatusApproved)

	_, err := f.svc.LogCallOutcome(context.Background(), p.ID, &LogCallCommand{Outcome: "Busy"}, testCaller, "coordinator", "127.0.0.1")
	if !errors.Is(err, patient.ErrInvalidOutcome) {
		t.Errorf("err = %v, want ErrInvalidOutcome", err)
	}
}

func TestLogCallFollowUp(t *testing.T) {
	f := newActivationFixture(t)
	p := f.seedPatient(t, patient.StatusApproved)

	cmd := &LogCallCommand{
		Outcome:    patient.OutcomeCallBackLater,
		NextAction: &patient.NextAction{Kind: patient.NextActionFollowUp, Date: "2026-04-01", Time: "14:00"},
	}
	got, err := f.svc.LogCallOutcome(context.Background(), p.ID, cmd, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.NextCallDate != "2026-04-01T14:00" {
		t.Errorf("NextCallDate = %q", got.NextCallDate)
	}
	if got.AppointmentDate != "" {
		t.Errorf("follow-up must not book an appointment, got %q", got.AppointmentDate)
	}
	if got.Status != patient.StatusOutreachFirst {
		t.Errorf("status = %q, want escalation to first attempt", got.Status)
	}
}

func TestLogCallBooksAppointment(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusOutreachSecond)

	ana, err := f.managers.GetByName(ctx, "Ana Smith")
	if err != nil {
		t.Fatal(err)
	}

	cmd := &LogCallCommand{
		Outcome: patient.OutcomeInterested,
		NextAction: &patient.NextAction{
			Kind:          patient.NextActionAppointment,
			Date:          "2026-04-06",
			Time:          "09:00",
			CareManagerID: &ana.ID,
		},
	}
	got, err := f.svc.LogCallOutcome(ctx, p.ID, cmd, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusScheduledWithCM {
		t.Errorf("status = %q, want %q", got.Status, patient.StatusScheduledWithCM)
	}
	if got.AppointmentDate != "2026-04-06T09:00" {
		t.Errorf("AppointmentDate = %q", got.AppointmentDate)
	}
	if got.CareManager != "Ana Smith" {
		t.Errorf("CareManager = %q", got.CareManager)
	}
}

func TestBookingConflictSameManager(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()

	first := f.seedPatient(t, patient.StatusApproved)
	second := f.seedPatient(t, patient.StatusApproved)

	book := func(id uuid.UUID) error {
		ana, err := f.managers.GetByName(ctx, "Ana Smith")
		if err != nil {
			t.Fatal(err)
		}
		cmd := &LogCallCommand{
			Outcome: patient.OutcomeInterested,
			NextAction: &patient.NextAction{
				Kind:          patient.NextActionAppointment,
				Date:          "2026-04-06",
				Time:          "09:45",
				CareManagerID: &ana.ID,
			},
		}
		_, err = f.svc.LogCallOutcome(ctx, id, cmd, testCaller, "coordinator", "127.0.0.1")
		return err
	}

	if err := book(first.ID); err != nil {
		t.Fatal(err)
	}
	err := book(second.ID)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("second booking err = %v, want ErrSlotTaken", err)
	}

	// The losing patient keeps their status and has no appointment.
	got, err := f.patients.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AppointmentDate != "" {
		t.Errorf("losing booking committed an appointment: %q", got.AppointmentDate)
	}
}

func TestBookingChecksAssignedManagerCalendar(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()

	holder := f.seedPatient(t, patient.StatusApproved)
	second := f.seedPatient(t, patient.StatusApproved)

	// The second patient already carries an assignment; any appointment they
	// book lands on Ana Smith's calendar regardless of the action's manager.
	assigned, err := f.patients.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	assigned.CareManager = "Ana Smith"
	if err := f.patients.Save(ctx, assigned); err != nil {
		t.Fatal(err)
	}

	john, err := f.managers.GetByName(ctx, "John Doe")
	if err != nil {
		t.Fatal(err)
	}

	book := func(id uuid.UUID, managerID *uuid.UUID, clock string) (*patient.Patient, error) {
		cmd := &LogCallCommand{
			Outcome: patient.OutcomeInterested,
			NextAction: &patient.NextAction{
				Kind:          patient.NextActionAppointment,
				Date:          "2026-04-06",
				Time:          clock,
				CareManagerID: managerID,
			},
		}
		return f.svc.LogCallOutcome(ctx, id, cmd, testCaller, "coordinator", "127.0.0.1")
	}

	// Take Ana Smith's 09:00 via the default-manager path.
	if _, err := book(holder.ID, nil, "09:00"); err != nil {
		t.Fatal(err)
	}

	// The action names John Doe, but the existing assignment wins the
	// tie-break, so the conflict check must run against Ana Smith's
	// calendar and reject the held slot.
	_, err = book(second.ID, &john.ID, "09:00")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("booking against held assigned-manager slot: err = %v, want ErrSlotTaken", err)
	}
	got, err := f.patients.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AppointmentDate != "" {
		t.Errorf("losing booking committed an appointment: %q", got.AppointmentDate)
	}

	// A free slot books fine and still commits under the existing
	// assignment, not the action's manager.
	won, err := book(second.ID, &john.ID, "09:45")
	if err != nil {
		t.Fatal(err)
	}
	if won.CareManager != "Ana Smith" {
		t.Errorf("CareManager = %q, want existing assignment preserved", won.CareManager)
	}
	if won.AppointmentDate != "2026-04-06T09:45" {
		t.Errorf("AppointmentDate = %q", won.AppointmentDate)
	}
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()

	const contenders = 8
	ids := make([]uuid.UUID, contenders)
	for i := range ids {
		ids[i] = f.seedPatient(t, patient.StatusApproved).ID
	}

	ana, err := f.managers.GetByName(ctx, "Ana Smith")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			cmd := &LogCallCommand{
				Outcome: patient.OutcomeInterested,
				NextAction: &patient.NextAction{
					Kind:          patient.NextActionAppointment,
					Date:          "2026-04-07",
					Time:          "10:30",
					CareManagerID: &ana.ID,
				},
			}
			_, err := f.svc.LogCallOutcome(ctx, id, cmd, testCaller, "coordinator", "127.0.0.1")
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1 (conflicts %d)", wins, conflicts)
	}
}

func TestScheduleDirectPath(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusOutreachFirst)

	got, err := f.svc.Schedule(ctx, p.ID, "2026-04-08", "13:00", testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusConsentSent {
		t.Errorf("status = %q, want %q", got.Status, patient.StatusConsentSent)
	}
	if got.AppointmentDate != "2026-04-08T13:00" {
		t.Errorf("AppointmentDate = %q", got.AppointmentDate)
	}
	// Unassigned patients pick up the default care manager.
	if got.CareManager != "Ana Smith" {
		t.Errorf("CareManager = %q, want default", got.CareManager)
	}
}

func TestScheduleOutsideFunnelIsNoOp(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusPendingApproval)

	got, err := f.svc.Schedule(ctx, p.ID, "2026-04-08", "13:00", testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusPendingApproval {
		t.Errorf("status = %q, want unchanged", got.Status)
	}
	if got.AppointmentDate != "" {
		t.Errorf("no-op schedule committed an appointment: %q", got.AppointmentDate)
	}
}

func TestRejectAndReset(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusPendingApproval)

	got, err := f.svc.Reject(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusNotApproved {
		t.Fatalf("status after reject = %q", got.Status)
	}

	got, err = f.svc.Reset(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusPendingApproval {
		t.Errorf("status after reset = %q", got.Status)
	}
}

func TestDeviceShippedAndActivate(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()
	p := f.seedPatient(t, patient.StatusScheduledWithCM)

	got, err := f.svc.MarkDeviceShipped(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusDeviceShipped {
		t.Fatalf("status = %q", got.Status)
	}

	got, err = f.svc.MarkActive(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != patient.StatusActive {
		t.Fatalf("status = %q", got.Status)
	}
	if got.EnrollmentDate == nil {
		t.Error("activation must stamp the enrollment date")
	}
}

func TestDaySlotsThroughService(t *testing.T) {
	f := newActivationFixture(t)
	ctx := context.Background()

	ana, err := f.managers.GetByName(ctx, "Ana Smith")
	if err != nil {
		t.Fatal(err)
	}

	// Ana works weekday mornings 09:00-12:00: four 45-minute slots.
	slots, err := f.svc.DaySlots(ctx, ana.ID, "2026-04-06", uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 4 {
		t.Fatalf("slots = %d, want 4", len(slots))
	}
	if slots[0].Time != "09:00" || slots[3].Time != "11:15" {
		t.Errorf("slot bounds = %q..%q", slots[0].Time, slots[len(slots)-1].Time)
	}
}
