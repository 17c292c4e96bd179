package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on duplicate MRN.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// GetByMRN retrieves a patient by their medical record number.
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)

	// Save writes back a mutated patient (status, call logs, scheduling fields).
	Save(ctx context.Context, p *Patient) error

	// List returns a paginated, filtered view of the roster.
	List(ctx context.Context, q *ListPatientsQuery) (*PagedPatients, error)

	// All returns the entire roster. The slot conflict detector scans this;
	// at campaign scale the linear scan is acceptable, a larger deployment
	// should index appointments by care manager and date instead.
	All(ctx context.Context) ([]*Patient, error)
}
