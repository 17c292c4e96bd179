package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
)

func seed(t *testing.T, r *PatientRepository, name, mrn string, status patient.Status, cm string) *patient.Patient {
	t.Helper()
	p := &patient.Patient{MRN: mrn, Name: name, Status: status, CareManager: cm}
	if err := r.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateAndGet(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	p := seed(t, r, "Jane Roe", "MRN-1", patient.StatusPendingApproval, "")
	if p.ID == uuid.Nil {
		t.Fatal("Create must assign an ID")
	}

	got, err := r.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Jane Roe" {
		t.Errorf("Name = %q", got.Name)
	}

	got, err = r.GetByMRN(ctx, "MRN-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID {
		t.Error("GetByMRN returned a different patient")
	}

	if _, err := r.GetByID(ctx, uuid.New()); !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("missing patient err = %v", err)
	}
}

func TestCreateDuplicateMRN(t *testing.T) {
	r := NewPatientRepository()
	seed(t, r, "Jane Roe", "MRN-1", patient.StatusPendingApproval, "")

	err := r.Create(context.Background(), &patient.Patient{MRN: "MRN-1", Name: "Other"})
	if !errors.Is(err, patient.ErrPatientAlreadyExists) {
		t.Errorf("duplicate MRN err = %v", err)
	}
}

func TestStoreIsolation(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()
	p := seed(t, r, "Jane Roe", "MRN-1", patient.StatusApproved, "")

	// Mutating a fetched copy must not leak into the store until Save.
	got, err := r.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Status = patient.StatusActive
	got.ConditionCodes = append(got.ConditionCodes, "I10")

	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != patient.StatusApproved {
		t.Error("mutation leaked into the store without Save")
	}
	if len(fresh.ConditionCodes) != 0 {
		t.Error("slice mutation leaked into the store")
	}

	if err := r.Save(ctx, got); err != nil {
		t.Fatal(err)
	}
	fresh, err = r.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != patient.StatusActive {
		t.Error("Save did not persist the mutation")
	}
}

func TestSaveUnknownPatient(t *testing.T) {
	r := NewPatientRepository()
	err := r.Save(context.Background(), &patient.Patient{ID: uuid.New()})
	if !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("Save unknown err = %v", err)
	}
}

func TestListFilters(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	seed(t, r, "Alice Adams", "MRN-1", patient.StatusApproved, "Ana Smith")
	seed(t, r, "Bob Brown", "MRN-2", patient.StatusApproved, "John Doe")
	seed(t, r, "Carol Clark", "MRN-3", patient.StatusActive, "Ana Smith")

	approved := patient.StatusApproved
	page, err := r.List(ctx, &patient.ListPatientsQuery{Status: &approved})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 2 {
		t.Errorf("status filter count = %d, want 2", page.TotalCount)
	}

	page, err = r.List(ctx, &patient.ListPatientsQuery{CareManager: "Ana Smith"})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 2 {
		t.Errorf("care manager filter count = %d, want 2", page.TotalCount)
	}

	page, err = r.List(ctx, &patient.ListPatientsQuery{Search: "caROL"})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 1 || page.Patients[0].Name != "Carol Clark" {
		t.Errorf("search result = %+v", page.Patients)
	}
}

func TestListPagination(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve"}
	for i, name := range names {
		seed(t, r, name, "MRN-"+string(rune('A'+i)), patient.StatusApproved, "")
	}

	page, err := r.List(ctx, &patient.ListPatientsQuery{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
	if len(page.Patients) != 2 || page.Patients[0].Name != "Carol" {
		t.Errorf("page 2 = %v", page.Patients)
	}

	// A page past the end is empty, not an error.
	page, err = r.List(ctx, &patient.ListPatientsQuery{Page: 9, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Patients) != 0 {
		t.Errorf("overshoot page = %v", page.Patients)
	}
}

func TestAllSortedByName(t *testing.T) {
	r := NewPatientRepository()
	ctx := context.Background()

	seed(t, r, "Zed", "MRN-1", patient.StatusApproved, "")
	seed(t, r, "Amy", "MRN-2", patient.StatusApproved, "")

	all, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "Amy" {
		t.Errorf("All order = %v", all)
	}
}
