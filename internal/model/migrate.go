package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра записи на интервью.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Candidate{},
		&Recruiter{},
		&City{},
		&Schedule{},
		&Slot{},
		&OutboxNotification{},
		&NotificationLog{},
		&Event{},
	)
}
