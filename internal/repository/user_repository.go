package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type UserRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpsertUser(ctx context.Context, telegramID int64, displayName, contactPhone string) (*model.User, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	// Keep only digits; ignore formatting characters.
	b := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		c := phone[i]
		if c >= '0' && c <= '9' {
			b = append(b, c)
		}
	}
	return string(b)
}

func (r *GormUserRepository) UpsertUser(ctx context.Context, telegramID int64, displayName, contactPhone string) (*model.User, error) {
	contactPhone = normalizePhone(contactPhone)
	var u model.User
	tx := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u)
	if tx.Error != nil {
		if tx.Error == gorm.ErrRecordNotFound {
			u.TelegramID = telegramID
			u.DisplayName = displayName
			u.ContactPhone = contactPhone
			if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
				return nil, err
			}
			return &u, nil
		}
		return nil, tx.Error
	}
	// update existing
	updates := map[string]any{
		"display_name":  displayName,
		"contact_phone": contactPhone,
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("telegram_id = ?", telegramID).Updates(updates).Error; err != nil {
		return nil, err
	}
	u.DisplayName = displayName
	u.ContactPhone = contactPhone
	return &u, nil
}
