package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
)

var ErrInvalidTelegramID = errors.New("invalid telegram id")

// IdentityService реализует регистрацию и профиль по Telegram ID.
type IdentityService struct {
	userRepo      repository.UserRepository
	candidateRepo repository.CandidateRepository
}

func NewIdentityService(userRepo repository.UserRepository, candidateRepo repository.CandidateRepository) *IdentityService {
	return &IdentityService{userRepo: userRepo, candidateRepo: candidateRepo}
}

// RegisterCandidate создаёт пользователя по Telegram ID (или обновляет
// контакты существующего) и гарантирует наличие кандидатской записи.
func (s *IdentityService) RegisterCandidate(ctx context.Context, telegramID int64, displayName, contactPhone string) (*model.User, *model.Candidate, error) {
	if telegramID <= 0 {
		return nil, nil, ErrInvalidTelegramID
	}

	u, err := s.userRepo.UpsertUser(ctx, telegramID, displayName, contactPhone)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.candidateRepo.EnsureByUserID(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}

	return u, c, nil
}

// GetProfile возвращает пользователя и его кандидатскую запись по Telegram ID.
// Кандидатской записи может не быть: такой пользователь ещё не регистрировался
// на собеседования.
func (s *IdentityService) GetProfile(ctx context.Context, telegramID int64) (*model.User, *model.Candidate, error) {
	if telegramID <= 0 {
		return nil, nil, ErrInvalidTelegramID
	}

	u, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.candidateRepo.GetByUserID(ctx, u.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return u, c, nil
}
