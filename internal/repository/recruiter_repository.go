package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type RecruiterRepository interface {
	GetByID(ctx context.Context, id string) (*model.Recruiter, error)
}

type GormRecruiterRepository struct {
	db *gorm.DB
}

func NewGormRecruiterRepository(db *gorm.DB) *GormRecruiterRepository {
	return &GormRecruiterRepository{db: db}
}

func (r *GormRecruiterRepository) GetByID(ctx context.Context, id string) (*model.Recruiter, error) {
	var rec model.Recruiter
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
