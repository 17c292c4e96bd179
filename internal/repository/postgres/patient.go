// Package postgres implements the roster repositories on gorm for real
// deployments. The engine never imports this package; cmd/api wires it in
// when DB_ENABLED is set.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if p.MRN != "" {
		var count int64
		if err := r.db.WithContext(ctx).Model(&patient.Patient{}).
			Where("mrn = ?", p.MRN).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return patient.ErrPatientAlreadyExists
		}
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) GetByMRN(ctx context.Context, mrn string) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).First(&p, "mrn = ?", mrn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatientRepository) Save(ctx context.Context, p *patient.Patient) error {
	result := r.db.WithContext(ctx).Save(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	page, size := q.Page, q.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	tx := r.db.WithContext(ctx).Model(&patient.Patient{})
	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}
	if q.CareManager != "" {
		tx = tx.Where("care_manager = ?", q.CareManager)
	}
	if q.Search != "" {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q.Search)+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var patients []*patient.Patient
	if err := tx.Order("name").Offset((page - 1) * size).Limit(size).Find(&patients).Error; err != nil {
		return nil, err
	}

	return &patient.PagedPatients{
		Patients:   patients,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

func (r *PatientRepository) All(ctx context.Context) ([]*patient.Patient, error) {
	var patients []*patient.Patient
	if err := r.db.WithContext(ctx).Order("name").Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}
