package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type ScheduleRepository interface {
	// ListByRecruiter возвращает рабочие интервалы рекрутёра.
	ListByRecruiter(ctx context.Context, recruiterID string) ([]model.Schedule, error)
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) ListByRecruiter(ctx context.Context, recruiterID string) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.WithContext(ctx).
		Where("recruiter_id = ?", recruiterID).
		Order("created_at DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}
