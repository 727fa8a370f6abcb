package model

import (
	"time"

	"github.com/google/uuid"
)

// Статус слота интервью.
type SlotStatus string

const (
	SlotStatusFree      SlotStatus = "free"
	SlotStatusPending   SlotStatus = "pending"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusConfirmed SlotStatus = "confirmed_by_candidate"
	SlotStatusRejected  SlotStatus = "rejected"
	SlotStatusCancelled SlotStatus = "cancelled"
	SlotStatusNoShow    SlotStatus = "no_show"
)

// Active — у слота есть живое бронирование.
func (s SlotStatus) Active() bool {
	switch s {
	case SlotStatusPending, SlotStatusBooked, SlotStatusConfirmed:
		return true
	}
	return false
}

// Terminal — слот закрыт и больше не переходит ни в какой статус.
func (s SlotStatus) Terminal() bool {
	switch s {
	case SlotStatusRejected, SlotStatusCancelled, SlotStatusNoShow:
		return true
	}
	return false
}

// Назначение слота.
type SlotPurpose string

const (
	SlotPurposeInterview SlotPurpose = "interview"
	SlotPurposeIntroDay  SlotPurpose = "intro_day"
)

// slots
type Slot struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	RecruiterID uuid.UUID `gorm:"type:uuid;not null;index"`
	CityID      uuid.UUID `gorm:"type:uuid;not null;index"`

	// Время всегда храним в UTC.
	StartsAt time.Time `gorm:"type:timestamp with time zone;not null;index"`
	EndsAt   time.Time `gorm:"type:timestamp with time zone;not null"`

	Purpose SlotPurpose `gorm:"type:varchar(32);not null;default:'interview'"`
	Status  SlotStatus  `gorm:"type:varchar(32);not null;default:'free';index"`

	// Заполняются при бронировании, NULL пока слот свободен.
	CandidateID *uuid.UUID `gorm:"type:uuid;index"`

	// BookingID — идентификатор эпизода бронирования. Генерируется заново
	// на каждый успешный Reserve; по нему ключуются outbox и журнал
	// дедупликации, поэтому повторное бронирование того же слота получает
	// чистую историю уведомлений.
	BookingID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	// Навигационные поля (опционально, но удобно для Preload).
	Recruiter *Recruiter `gorm:"foreignKey:RecruiterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	City      *City      `gorm:"foreignKey:CityID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Candidate *Candidate `gorm:"foreignKey:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
