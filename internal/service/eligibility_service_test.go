package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/domain/program"
	"github.com/iterahealth/activation-engine/internal/repository/memory"
)

func newEligibilityService(t *testing.T) (*EligibilityService, *memory.PatientRepository) {
	t.Helper()
	log := zap.NewNop()
	repo := memory.NewPatientRepository()
	auditSvc := NewAuditService(memory.NewAuditRepository(), newTestCollector(), log)
	t.Cleanup(auditSvc.Shutdown)
	return NewEligibilityService(repo, auditSvc, log), repo
}

func createCommand(mrn, codes string) *patient.CreatePatientCommand {
	return &patient.CreatePatientCommand{
		MRN:            mrn,
		Name:           "Jane Roe",
		DateOfBirth:    time.Date(1952, 6, 1, 0, 0, 0, 0, time.UTC),
		Gender:         patient.GenderFemale,
		Insurance:      "Medicare",
		ConditionCodes: patient.ParseCodes(codes),
		CreatedBy:      testCaller,
	}
}

func TestRegisterPatientSeedsEligibility(t *testing.T) {
	svc, _ := newEligibilityService(t)
	ctx := context.Background()

	p, result, err := svc.RegisterPatient(ctx, createCommand("MRN-1001", "I10, E11"), testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, patient.StatusPendingApproval, p.Status)
	assert.Contains(t, p.EligiblePrograms, program.CCM)
	assert.Contains(t, p.EligiblePrograms, program.RPM)
	assert.NotContains(t, p.EligiblePrograms, program.PCM)
	assert.Equal(t, p.ID.String(), result.PatientID)
}

func TestRegisterPatientIneligible(t *testing.T) {
	svc, _ := newEligibilityService(t)

	p, result, err := svc.RegisterPatient(context.Background(), createCommand("MRN-1002", ""), testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, patient.StatusNotApproved, p.Status)
	assert.Empty(t, p.EligiblePrograms)
	assert.NotEmpty(t, result.NotEligibleReason)
}

func TestRegisterPatientDuplicateMRN(t *testing.T) {
	svc, _ := newEligibilityService(t)
	ctx := context.Background()

	_, _, err := svc.RegisterPatient(ctx, createCommand("MRN-1003", "I10"), testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	_, _, err = svc.RegisterPatient(ctx, createCommand("MRN-1003", "E11"), testCaller, "coordinator", "127.0.0.1")
	assert.ErrorIs(t, err, patient.ErrPatientAlreadyExists)
}

func TestRegisterPatientValidation(t *testing.T) {
	svc, _ := newEligibilityService(t)
	ctx := context.Background()

	cmd := createCommand("", "I10")
	_, _, err := svc.RegisterPatient(ctx, cmd, testCaller, "coordinator", "127.0.0.1")
	var validErr *ValidationError
	require.True(t, errors.As(err, &validErr), "want ValidationError, got %v", err)

	cmd = createCommand("MRN-1004", "I10")
	cmd.DateOfBirth = time.Now().AddDate(1, 0, 0)
	_, _, err = svc.RegisterPatient(ctx, cmd, testCaller, "coordinator", "127.0.0.1")
	require.True(t, errors.As(err, &validErr), "future DOB should fail validation, got %v", err)
}

func TestEvaluateRefreshesPrograms(t *testing.T) {
	svc, repo := newEligibilityService(t)
	ctx := context.Background()

	p, _, err := svc.RegisterPatient(ctx, createCommand("MRN-1005", "I10"), testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, p.EligiblePrograms, program.PCM)

	// A new diagnosis lands; the next evaluation upgrades the program set.
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	stored.ConditionCodes = append(stored.ConditionCodes, "E11")
	require.NoError(t, repo.Save(ctx, stored))

	result, err := svc.Evaluate(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	refreshed, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, refreshed.EligiblePrograms, program.CCM)
	assert.NotContains(t, refreshed.EligiblePrograms, program.PCM)
	assert.Equal(t, patient.StatusPendingApproval, result.StatusHint)
}

func TestEvaluateDoesNotDisturbFunnelStatus(t *testing.T) {
	svc, repo := newEligibilityService(t)
	ctx := context.Background()

	p, _, err := svc.RegisterPatient(ctx, createCommand("MRN-1006", "I10, E11"), testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	// The patient has been worked into the funnel since registration.
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	stored.Status = patient.StatusOutreachFirst
	require.NoError(t, repo.Save(ctx, stored))

	_, err = svc.Evaluate(ctx, p.ID, testCaller, "coordinator", "127.0.0.1")
	require.NoError(t, err)

	refreshed, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.StatusOutreachFirst, refreshed.Status,
		"re-evaluation must not yank an in-funnel patient back to pending")
}

func TestEvaluateNotFound(t *testing.T) {
	svc, _ := newEligibilityService(t)

	_, err := svc.Evaluate(context.Background(), uuid.New(), testCaller, "coordinator", "127.0.0.1")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestListPatientsClampsPaging(t *testing.T) {
	svc, _ := newEligibilityService(t)
	ctx := context.Background()

	for _, mrn := range []string{"MRN-2001", "MRN-2002", "MRN-2003"} {
		_, _, err := svc.RegisterPatient(ctx, createCommand(mrn, "I10"), testCaller, "coordinator", "127.0.0.1")
		require.NoError(t, err)
	}

	page, err := svc.ListPatients(ctx, &patient.ListPatientsQuery{Page: -1, PageSize: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, int64(3), page.TotalCount)
}
