package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type CandidateRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Candidate, error)
	EnsureByUserID(ctx context.Context, userID uuid.UUID) (*model.Candidate, error)
}

type GormCandidateRepository struct {
	db *gorm.DB
}

func NewGormCandidateRepository(db *gorm.DB) *GormCandidateRepository {
	return &GormCandidateRepository{db: db}
}

func (r *GormCandidateRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Candidate, error) {
	var c model.Candidate
	if err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCandidateRepository) EnsureByUserID(ctx context.Context, userID uuid.UUID) (*model.Candidate, error) {
	if userID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var c model.Candidate
	tx := r.db.WithContext(ctx).First(&c, "user_id = ?", userID)
	if tx.Error == nil {
		return &c, nil
	}
	if tx.Error != gorm.ErrRecordNotFound {
		return nil, tx.Error
	}

	c = model.Candidate{UserID: userID}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
