package model

import (
	"time"

	"github.com/google/uuid"
)

// Тип события аудита.
type EventType string

const (
	EventTypeSlotReserved    EventType = "slot_reserved"
	EventTypeSlotConfirmed   EventType = "slot_confirmed"
	EventTypeSlotRejected    EventType = "slot_rejected"
	EventTypeSlotRescheduled EventType = "slot_rescheduled"
	EventTypeSlotNoShow      EventType = "slot_no_show"
)

// events — события аудита переходов слота. Пишутся в той же транзакции,
// что и сам переход.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	SlotID    *uuid.UUID `gorm:"type:uuid;index"`
	BookingID *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`

	// Навигационные поля
	Slot *Slot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
