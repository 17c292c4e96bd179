package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
)

type CareManagerRepository struct {
	db *gorm.DB
}

func NewCareManagerRepository(db *gorm.DB) *CareManagerRepository {
	return &CareManagerRepository{db: db}
}

func (r *CareManagerRepository) GetByID(ctx context.Context, id uuid.UUID) (*caremanager.CareManager, error) {
	var m caremanager.CareManager
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, caremanager.ErrCareManagerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CareManagerRepository) GetByName(ctx context.Context, name string) (*caremanager.CareManager, error) {
	var m caremanager.CareManager
	err := r.db.WithContext(ctx).First(&m, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, caremanager.ErrCareManagerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CareManagerRepository) List(ctx context.Context) ([]*caremanager.CareManager, error) {
	var managers []*caremanager.CareManager
	if err := r.db.WithContext(ctx).Order("name").Find(&managers).Error; err != nil {
		return nil, err
	}
	return managers, nil
}
