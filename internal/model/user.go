package model

import (
	"time"

	"github.com/google/uuid"
)

// users
type User struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// Идентификатор чата в Telegram — туда уходят уведомления.
	TelegramID   int64  `gorm:"not null;uniqueIndex"`
	DisplayName  string `gorm:"type:varchar(255)"`
	ContactPhone string `gorm:"type:varchar(32)"`

	Note string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	// Навигационные поля (опционально)
	Candidate *Candidate `gorm:"foreignKey:UserID"`
	Recruiter *Recruiter `gorm:"foreignKey:UserID"`
}

// candidates — соискатели, записывающиеся на интервью через бота.
type Candidate struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	UserID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Город, к которому прикреплён соискатель.
	CityID *uuid.UUID `gorm:"type:uuid;index"`

	Comment string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	City *City `gorm:"foreignKey:CityID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
