package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type OutboxRepository interface {
	// Enqueue вставляет запись outbox. Вызывается из транзакции движка
	// бронирования или планировщика напоминаний — db здесь уже tx.
	Enqueue(ctx context.Context, n *model.OutboxNotification) error
	// ClaimNext атомарно переводит одну готовую к отправке запись в
	// in_flight и возвращает её. Помимо pending и дозревших failed
	// забираются in_flight-записи с истёкшей арендой lease: воркер,
	// упавший между захватом и исходом, не теряет уведомление навсегда.
	// (nil, nil) — забирать нечего.
	ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*model.OutboxNotification, error)
	// MarkSent закрывает запись успехом и фиксирует итоговое число попыток.
	MarkSent(ctx context.Context, id string, attempts int) error
	// MarkRetry возвращает запись в очередь с бэкоффом.
	MarkRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	// MarkFatal закрывает запись без дальнейших повторов.
	MarkFatal(ctx context.Context, id string, attempts int, lastError string) error
	// Backlog — количество ещё не доставленных записей.
	Backlog(ctx context.Context) (int64, error)
	// FatalCount — количество записей, требующих внимания оператора.
	FatalCount(ctx context.Context) (int64, error)
}

type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) Enqueue(ctx context.Context, n *model.OutboxNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *GormOutboxRepository) ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*model.OutboxNotification, error) {
	if lease <= 0 {
		lease = 5 * time.Minute
	}

	for {
		var n model.OutboxNotification
		err := r.db.WithContext(ctx).
			Where("status = ? OR (status = ? AND next_retry_at <= ?) OR (status = ? AND updated_at <= ?)",
				model.OutboxStatusPending,
				model.OutboxStatusFailed, now,
				model.OutboxStatusInFlight, now.Add(-lease)).
			Order("created_at ASC").
			First(&n).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		// Условный UPDATE со старым статусом в WHERE: из двух воркеров,
		// увидевших одну и ту же запись, ровно один получит RowsAffected=1.
		// Для просроченной in_flight-записи статус не меняется, поэтому
		// эксклюзивность даёт проверка updated_at.
		claim := r.db.WithContext(ctx).
			Model(&model.OutboxNotification{}).
			Where("id = ? AND status = ?", n.ID, n.Status)
		if n.Status == model.OutboxStatusInFlight {
			claim = claim.Where("updated_at = ?", n.UpdatedAt)
		}
		res := claim.Updates(map[string]any{
			"status":     model.OutboxStatusInFlight,
			"updated_at": now,
		})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Запись увёл другой воркер — пробуем следующую.
			continue
		}

		n.Status = model.OutboxStatusInFlight
		n.UpdatedAt = now
		return &n, nil
	}
}

func (r *GormOutboxRepository) MarkSent(ctx context.Context, id string, attempts int) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.OutboxStatusSent,
			"attempts":   attempts,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *GormOutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        model.OutboxStatusFailed,
			"attempts":      attempts,
			"next_retry_at": nextRetryAt,
			"last_error":    lastError,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *GormOutboxRepository) MarkFatal(ctx context.Context, id string, attempts int, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.OutboxStatusFatal,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *GormOutboxRepository) Backlog(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxNotification{}).
		Where("status IN ?", []model.OutboxStatus{
			model.OutboxStatusPending,
			model.OutboxStatusInFlight,
			model.OutboxStatusFailed,
		}).
		Count(&total).Error
	return total, err
}

func (r *GormOutboxRepository) FatalCount(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxNotification{}).
		Where("status = ?", model.OutboxStatusFatal).
		Count(&total).Error
	return total, err
}
