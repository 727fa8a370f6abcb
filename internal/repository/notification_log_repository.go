package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hireline/recruiting-core/internal/model"
)

type NotificationLogRepository interface {
	// Insert записывает отметку дедупликации. Конфликт по уникальной
	// тройке (type, booking_id, chat_id) — no-op, не ошибка.
	Insert(ctx context.Context, log *model.NotificationLog) error
	// Exists — есть ли уже отметка для этого уведомления.
	Exists(ctx context.Context, t model.NotificationType, bookingID uuid.UUID, chatID int64) (bool, error)
	// DeleteByBooking снимает все отметки бронирования. Вызывается из
	// транзакции reject/reschedule.
	DeleteByBooking(ctx context.Context, bookingID uuid.UUID) error
}

type GormNotificationLogRepository struct {
	db *gorm.DB
}

func NewGormNotificationLogRepository(db *gorm.DB) *GormNotificationLogRepository {
	return &GormNotificationLogRepository{db: db}
}

func (r *GormNotificationLogRepository) Insert(ctx context.Context, log *model.NotificationLog) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(log).Error
}

func (r *GormNotificationLogRepository) Exists(ctx context.Context, t model.NotificationType, bookingID uuid.UUID, chatID int64) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.NotificationLog{}).
		Where("type = ? AND booking_id = ? AND chat_id = ?", t, bookingID, chatID).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *GormNotificationLogRepository) DeleteByBooking(ctx context.Context, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Delete(&model.NotificationLog{}).Error
}
