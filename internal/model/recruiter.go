package model

import (
	"time"

	"github.com/google/uuid"
)

// Recruiter — рекрутёр, к которому соискатели записываются на интервью.
// Привязан к базе пользователей через UserID.
type Recruiter struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// Внешний ключ на таблицу пользователей.
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName string `gorm:"type:varchar(255);not null"`

	// Краткое описание: направление найма, позиции и т.п.
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	// Навигационные поля для GORM (опционально, но удобно для Preload).
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	Schedules []Schedule `gorm:"foreignKey:RecruiterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Slots     []Slot     `gorm:"foreignKey:RecruiterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
