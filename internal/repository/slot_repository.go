package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type SlotRepository interface {
	// Свободные слоты рекрутёра по интервалу и городу.
	ListFreeSlots(ctx context.Context, recruiterID, cityID string, from, to time.Time, limit, offset int) ([]model.Slot, int64, error)
	// Все слоты рекрутёра по интервалу (любые статусы).
	ListByRecruiterRange(ctx context.Context, recruiterID string, from, to time.Time, limit, offset int) ([]model.Slot, int64, error)
	// Найти слот по ID.
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	// Создать пачку слотов (массовая генерация).
	CreateBatch(ctx context.Context, slots []model.Slot) error
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) ListFreeSlots(
	ctx context.Context,
	recruiterID, cityID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Slot, int64, error) {
	var slots []model.Slot
	q := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("recruiter_id = ?", recruiterID).
		Where("starts_at >= ? AND ends_at <= ?", from, to).
		Where("status = ?", model.SlotStatusFree)

	if cityID != "" {
		q = q.Where("city_id = ?", cityID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("starts_at ASC").Find(&slots).Error; err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

func (r *GormSlotRepository) ListByRecruiterRange(
	ctx context.Context,
	recruiterID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Slot, int64, error) {
	var slots []model.Slot
	q := r.db.WithContext(ctx).
		Model(&model.Slot{}).
		Where("recruiter_id = ?", recruiterID).
		Where("starts_at >= ? AND ends_at <= ?", from, to)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("starts_at ASC").Find(&slots).Error; err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	var slot model.Slot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) CreateBatch(ctx context.Context, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(slots, 100).Error
}
