// Package memory holds the in-process roster store the reference deployment
// runs on. It is also the store the unit tests use: the engine only ever sees
// the repository interfaces, so swapping in Postgres is a wiring change.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/domain/program"
)

type PatientRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*patient.Patient
}

func NewPatientRepository() *PatientRepository {
	return &PatientRepository{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (r *PatientRepository) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.MRN != "" {
		for _, existing := range r.patients {
			if existing.MRN == p.MRN {
				return patient.ErrPatientAlreadyExists
			}
		}
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	r.patients[p.ID] = clone(p)
	return nil
}

func (r *PatientRepository) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return clone(p), nil
}

func (r *PatientRepository) GetByMRN(_ context.Context, mrn string) (*patient.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patients {
		if p.MRN == mrn {
			return clone(p), nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r *PatientRepository) Save(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[p.ID]; !ok {
		return patient.ErrPatientNotFound
	}
	p.UpdatedAt = time.Now()
	r.patients[p.ID] = clone(p)
	return nil
}

func (r *PatientRepository) List(_ context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*patient.Patient
	for _, p := range r.patients {
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		if q.CareManager != "" && p.CareManager != q.CareManager {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, clone(p))
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	page, size := q.Page, q.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))

	return &patient.PagedPatients{
		Patients:   matched[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

func (r *PatientRepository) All(_ context.Context) ([]*patient.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*patient.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// clone copies a patient deeply enough that callers can mutate the result
// without reaching into the store.
func clone(p *patient.Patient) *patient.Patient {
	c := *p
	c.ConditionCodes = append([]string(nil), p.ConditionCodes...)
	c.EligiblePrograms = append([]program.ID(nil), p.EligiblePrograms...)
	c.CallLogs = append([]patient.CallLog(nil), p.CallLogs...)
	return &c
}
