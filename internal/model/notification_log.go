package model

import (
	"time"

	"github.com/google/uuid"
)

// notification_logs — журнал идемпотентности. Сам факт существования записи
// означает "это логическое уведомление для этого бронирования уже поставлено
// в очередь/отправлено". Уникальный индекс по тройке — последний рубеж против
// дублей: конфликт на вставке трактуется как no-op, а не как ошибка.
//
// При reject/reschedule записи старого бронирования удаляются в той же
// транзакции, иначе новое бронирование на том же слоте молча останется
// без напоминаний.
type NotificationLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	Type      NotificationType `gorm:"type:varchar(32);not null;uniqueIndex:idx_notification_dedup,priority:1"`
	BookingID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_notification_dedup,priority:2"`
	ChatID    int64            `gorm:"not null;uniqueIndex:idx_notification_dedup,priority:3"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}
