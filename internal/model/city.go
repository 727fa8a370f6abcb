package model

import (
	"time"

	"github.com/google/uuid"
)

// cities
type City struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`

	// Часовой пояс города — для отображения времени слотов кандидату.
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
