package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Тип логического уведомления.
type NotificationType string

const (
	NotificationTypeConfirmation     NotificationType = "confirmation"
	NotificationTypeReminder6H       NotificationType = "reminder_6h"
	NotificationTypeReminder3H       NotificationType = "reminder_3h"
	NotificationTypeReminder2H       NotificationType = "reminder_2h"
	NotificationTypeReschedulePrompt NotificationType = "reschedule_prompt"
	NotificationTypeCancelAck        NotificationType = "cancel_ack"
	NotificationTypeNoShow           NotificationType = "no_show"
)

// Статус записи outbox.
type OutboxStatus string

const (
	OutboxStatusPending  OutboxStatus = "pending"
	OutboxStatusInFlight OutboxStatus = "in_flight"
	OutboxStatusSent     OutboxStatus = "sent"
	OutboxStatusFailed   OutboxStatus = "failed"
	OutboxStatusFatal    OutboxStatus = "fatal"
)

// outbox_notifications — долговечная очередь работы по доставке.
// Записи создаются в одной транзакции с изменением слота (outbox-паттерн),
// дальше ими владеет только пул доставки.
type OutboxNotification struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	Type NotificationType `gorm:"type:varchar(32);not null;index"`

	// Чат, в который нужно отправить сообщение.
	ChatID int64 `gorm:"not null;index"`

	SlotID    uuid.UUID `gorm:"type:uuid;not null;index"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Содержимое сообщения; рендеринг шаблонов — забота внешнего слоя.
	Payload datatypes.JSON `gorm:"type:jsonb"`

	Status   OutboxStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_outbox_claim,priority:1"`
	Attempts int          `gorm:"not null;default:0"`

	// Для failed-записей — не раньше какого момента можно повторить.
	NextRetryAt time.Time `gorm:"type:timestamp with time zone;not null;default:now();index:idx_outbox_claim,priority:2"`

	LastError string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Slot *Slot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
