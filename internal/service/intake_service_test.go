package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/repository/memory"
)

const intakeHeader = "MRN,Name,DOB,Gender,ZipCode,Insurance,Provider_NPI,Last_Visit_Date,ICD10_Codes,Email,Phone,Home_Phone\n"

func newIntakeFixture(t *testing.T) (*IntakeService, *memory.PatientRepository) {
	t.Helper()
	log := zap.NewNop()
	repo := memory.NewPatientRepository()
	auditSvc := NewAuditService(memory.NewAuditRepository(), newTestCollector(), log)
	t.Cleanup(auditSvc.Shutdown)
	eligibilitySvc := NewEligibilityService(repo, auditSvc, log)
	return NewIntakeService(eligibilitySvc, auditSvc, log), repo
}

func TestImportCSV(t *testing.T) {
	svc, repo := newIntakeFixture(t)

	recentVisit := time.Now().AddDate(0, -3, 0).Format(patient.DateLayout)
	csv := intakeHeader +
		`MRN-3001,Robert Fields,1950-02-11,male,75001,Medicare,1234567890,` + recentVisit + `,"I10, E11.9",rob@example.com,555-0101,555-0102` + "\n" +
		`MRN-3002,Alma Reyes,1948-09-30,female,75002,Medicare,1234567891,` + recentVisit + `,F32,alma@example.com,555-0103,` + "\n"

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(csv), testCaller, "admin", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 0, summary.Skipped)

	p, err := repo.GetByMRN(context.Background(), "MRN-3001")
	require.NoError(t, err)
	assert.Equal(t, []string{"I10", "E11.9"}, p.ConditionCodes)
	assert.Equal(t, patient.StatusPendingApproval, p.Status)
	require.NotNil(t, p.LastVisitDate)
}

func TestImportCSVSkipsMalformedRows(t *testing.T) {
	svc, repo := newIntakeFixture(t)

	csv := intakeHeader +
		// Unparseable DOB
		"MRN-3003,Bad Dob,not-a-date,male,75001,Medicare,123,,I10,a@b.c,555,\n" +
		// Missing MRN
		",No Mrn,1950-01-01,male,75001,Medicare,123,,I10,a@b.c,555,\n" +
		// Good row
		"MRN-3004,Good Row,1950-01-01,female,75001,Medicare,123,,I10,a@b.c,555,\n" +
		// Duplicate MRN of the good row
		"MRN-3004,Dup Row,1950-01-01,female,75001,Medicare,123,,E11,a@b.c,555,\n"

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(csv), testCaller, "admin", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 3, summary.Skipped)
	assert.Len(t, summary.Errors, 3)

	_, err = repo.GetByMRN(context.Background(), "MRN-3004")
	assert.NoError(t, err)
}

func TestImportCSVRejectsBadHeader(t *testing.T) {
	svc, _ := newIntakeFixture(t)

	csv := "MRN,Name\nMRN-1,Someone\n"
	_, err := svc.ImportCSV(context.Background(), strings.NewReader(csv), testCaller, "admin", "127.0.0.1")
	assert.Error(t, err)
}

func TestImportCSVAcceptsSlashDates(t *testing.T) {
	svc, repo := newIntakeFixture(t)

	csv := intakeHeader +
		"MRN-3005,Slash Dates,02/11/1950,male,75001,Medicare,123,01/10/2026,I10,a@b.c,555,\n"

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(csv), testCaller, "admin", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	p, err := repo.GetByMRN(context.Background(), "MRN-3005")
	require.NoError(t, err)
	assert.Equal(t, 1950, p.DateOfBirth.Year())
	require.NotNil(t, p.LastVisitDate)
	assert.Equal(t, time.January, p.LastVisitDate.Month())
}
