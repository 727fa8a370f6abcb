package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/calendar"
	"github.com/hireline/recruiting-core/internal/model"
)

// Доменные отказы машины состояний слота. Возвращаются вызывающему как есть,
// никогда не схлопываются в общий "internal error".
var (
	ErrSlotNotFound           = errors.New("slot not found")
	ErrSlotTaken              = errors.New("slot taken")
	ErrWrongRecruiter         = errors.New("wrong recruiter")
	ErrWrongCity              = errors.New("wrong city")
	ErrCandidateAlreadyBooked = errors.New("candidate already booked")
	ErrSlotNotActive          = errors.New("slot has no active booking")
)

// ReservationService — машина состояний слота. Все переходы выполняются в
// одной транзакции вместе с постановкой уведомлений в outbox, поэтому
// изменение статуса и обязанность уведомить либо фиксируются вместе,
// либо откатываются вместе.
type ReservationService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewReservationService(db *gorm.DB, logger *zap.Logger) *ReservationService {
	return &ReservationService{db: db, logger: logger}
}

// Reserve бронирует свободный слот за кандидатом.
//
// Порядок внутри транзакции:
//  1. валидация принадлежности слота рекрутёру/городу (отдельные ошибки,
//     не "slot taken");
//  2. атомарный захват: условный UPDATE со статусом в WHERE — из двух
//     конкурентных запросов ровно один получает RowsAffected=1, второй
//     наблюдает ErrSlotTaken;
//  3. проверка, что кандидат не держит другое живое бронирование у того же
//     рекрутёра (все нетерминальные статусы); нарушение откатывает захват;
//  4. постановка confirmation в outbox и событие аудита.
func (s *ReservationService) Reserve(ctx context.Context, slotID, candidateID, recruiterID, cityID string) (*model.Slot, error) {
	var reserved model.Slot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("load slot: %w", err)
		}

		if slot.RecruiterID.String() != recruiterID {
			return ErrWrongRecruiter
		}
		if slot.CityID.String() != cityID {
			return ErrWrongCity
		}

		now := time.Now().UTC()
		bookingID := uuid.New()

		res := tx.Model(&model.Slot{}).
			Where("id = ? AND status = ?", slotID, model.SlotStatusFree).
			Updates(map[string]any{
				"status":       model.SlotStatusBooked,
				"candidate_id": candidateID,
				"booking_id":   bookingID,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("claim slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSlotTaken
		}

		// Проверка двойного бронирования — после захвата, чтобы откат
		// транзакции освобождал слот. Перечень статусов обязан покрывать
		// все нетерминальные: пропуск хотя бы одного возвращает двойные
		// бронирования.
		var active int64
		if err := tx.Model(&model.Slot{}).
			Where("id <> ?", slotID).
			Where("candidate_id = ? AND recruiter_id = ?", candidateID, recruiterID).
			Where("status IN ?", []model.SlotStatus{
				model.SlotStatusPending,
				model.SlotStatusBooked,
				model.SlotStatusConfirmed,
			}).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active > 0 {
			return ErrCandidateAlreadyBooked
		}

		if err := tx.First(&reserved, "id = ?", slotID).Error; err != nil {
			return fmt.Errorf("reload slot: %w", err)
		}

		chatID, err := chatIDForCandidate(tx, candidateID)
		if err != nil {
			return err
		}

		if err := enqueueNotification(tx, &reserved, model.NotificationTypeConfirmation, chatID, now); err != nil {
			return err
		}

		return writeEvent(tx, model.EventTypeSlotReserved, &reserved, fmt.Sprintf("candidate %s", candidateID))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("slot reserved",
		zap.String("slot_id", reserved.ID.String()),
		zap.String("candidate_id", candidateID),
		zap.String("booking_id", reserved.BookingID.String()),
	)
	return &reserved, nil
}

// Confirm переводит бронирование в confirmed_by_candidate.
func (s *ReservationService) Confirm(ctx context.Context, slotID string) (*model.Slot, error) {
	var confirmed model.Slot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&model.Slot{}).
			Where("id = ? AND status IN ?", slotID, []model.SlotStatus{
				model.SlotStatusPending,
				model.SlotStatusBooked,
			}).
			Updates(map[string]any{
				"status":     model.SlotStatusConfirmed,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("confirm slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return slotMissingOrInactive(tx, slotID)
		}

		if err := tx.First(&confirmed, "id = ?", slotID).Error; err != nil {
			return fmt.Errorf("reload slot: %w", err)
		}
		return writeEvent(tx, model.EventTypeSlotConfirmed, &confirmed, "")
	})
	if err != nil {
		return nil, err
	}
	return &confirmed, nil
}

// Reject отклоняет бронирование. Вместе с переходом статуса в той же
// транзакции удаляются отметки дедупликации старого бронирования — иначе
// новое бронирование на этом слоте/кандидате молча останется без напоминаний —
// и кандидату ставится приглашение выбрать другое время.
func (s *ReservationService) Reject(ctx context.Context, slotID, reason string) (*model.Slot, error) {
	return s.closeSlot(ctx, slotID, reason, model.SlotStatusRejected, model.EventTypeSlotRejected, model.NotificationTypeReschedulePrompt)
}

// MarkNoShow фиксирует неявку кандидата.
func (s *ReservationService) MarkNoShow(ctx context.Context, slotID string) (*model.Slot, error) {
	return s.closeSlot(ctx, slotID, "no show", model.SlotStatusNoShow, model.EventTypeSlotNoShow, model.NotificationTypeNoShow)
}

// Reschedule переносит живое бронирование со старого слота на новый:
// старый уходит в cancelled, его отметки дедупликации удаляются, новый слот
// захватывается тем же кандидатом со свежим booking_id и получает свою
// confirmation. Всё — одна транзакция.
func (s *ReservationService) Reschedule(ctx context.Context, slotID, newSlotID string) (*model.Slot, error) {
	var moved model.Slot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldSlot model.Slot
		if err := tx.First(&oldSlot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if !oldSlot.Status.Active() || oldSlot.CandidateID == nil || oldSlot.BookingID == nil {
			return ErrSlotNotActive
		}

		var newSlot model.Slot
		if err := tx.First(&newSlot, "id = ?", newSlotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("load new slot: %w", err)
		}
		if newSlot.RecruiterID != oldSlot.RecruiterID {
			return ErrWrongRecruiter
		}
		if newSlot.CityID != oldSlot.CityID {
			return ErrWrongCity
		}

		now := time.Now().UTC()
		candidateID := *oldSlot.CandidateID
		bookingID := uuid.New()

		res := tx.Model(&model.Slot{}).
			Where("id = ? AND status = ?", newSlotID, model.SlotStatusFree).
			Updates(map[string]any{
				"status":       model.SlotStatusBooked,
				"candidate_id": candidateID,
				"booking_id":   bookingID,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("claim new slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSlotTaken
		}

		res = tx.Model(&model.Slot{}).
			Where("id = ? AND status IN ?", slotID, activeStatuses()).
			Updates(map[string]any{
				"status":     model.SlotStatusCancelled,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("cancel old slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSlotNotActive
		}

		if err := tx.Where("booking_id = ?", *oldSlot.BookingID).
			Delete(&model.NotificationLog{}).Error; err != nil {
			return fmt.Errorf("clear notification log: %w", err)
		}

		if err := tx.First(&moved, "id = ?", newSlotID).Error; err != nil {
			return fmt.Errorf("reload new slot: %w", err)
		}

		chatID, err := chatIDForCandidate(tx, candidateID.String())
		if err != nil {
			return err
		}
		// Кандидату уходят оба сообщения: подтверждение отмены старого
		// времени и confirmation нового. oldSlot снят до перехода в
		// cancelled, его booking_id ещё на месте.
		if err := enqueueNotification(tx, &oldSlot, model.NotificationTypeCancelAck, chatID, now); err != nil {
			return err
		}
		if err := enqueueNotification(tx, &moved, model.NotificationTypeConfirmation, chatID, now); err != nil {
			return err
		}

		return writeEvent(tx, model.EventTypeSlotRescheduled, &moved,
			fmt.Sprintf("moved from slot %s", slotID))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("slot rescheduled",
		zap.String("old_slot_id", slotID),
		zap.String("new_slot_id", moved.ID.String()),
	)
	return &moved, nil
}

// closeSlot — общий боковой выход: active → terminal с очисткой журнала
// дедупликации и уведомлением кандидата.
func (s *ReservationService) closeSlot(
	ctx context.Context,
	slotID, details string,
	status model.SlotStatus,
	event model.EventType,
	notification model.NotificationType,
) (*model.Slot, error) {
	var closed model.Slot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, "id = ?", slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if !slot.Status.Active() {
			return ErrSlotNotActive
		}

		now := time.Now().UTC()
		res := tx.Model(&model.Slot{}).
			Where("id = ? AND status IN ?", slotID, activeStatuses()).
			Updates(map[string]any{
				"status":     status,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("close slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSlotNotActive
		}

		if slot.BookingID != nil {
			if err := tx.Where("booking_id = ?", *slot.BookingID).
				Delete(&model.NotificationLog{}).Error; err != nil {
				return fmt.Errorf("clear notification log: %w", err)
			}
		}

		if err := tx.First(&closed, "id = ?", slotID).Error; err != nil {
			return fmt.Errorf("reload slot: %w", err)
		}

		if slot.CandidateID != nil {
			chatID, err := chatIDForCandidate(tx, slot.CandidateID.String())
			if err != nil {
				return err
			}
			if err := enqueueNotification(tx, &closed, notification, chatID, now); err != nil {
				return err
			}
		}

		return writeEvent(tx, event, &closed, details)
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

func activeStatuses() []model.SlotStatus {
	return []model.SlotStatus{
		model.SlotStatusPending,
		model.SlotStatusBooked,
		model.SlotStatusConfirmed,
	}
}

// slotMissingOrInactive различает "слота нет" и "слот есть, но переход
// недопустим" после условного UPDATE с нулём затронутых строк.
func slotMissingOrInactive(tx *gorm.DB, slotID string) error {
	var total int64
	if err := tx.Model(&model.Slot{}).Where("id = ?", slotID).Count(&total).Error; err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if total == 0 {
		return ErrSlotNotFound
	}
	return ErrSlotNotActive
}

// chatIDForCandidate достаёт Telegram-чат кандидата через его пользователя.
func chatIDForCandidate(tx *gorm.DB, candidateID string) (int64, error) {
	var chatID int64
	err := tx.Model(&model.Candidate{}).
		Select("users.telegram_id").
		Joins("JOIN users ON users.id = candidates.user_id").
		Where("candidates.id = ?", candidateID).
		Scan(&chatID).Error
	if err != nil {
		return 0, fmt.Errorf("resolve candidate chat: %w", err)
	}
	if chatID == 0 {
		return 0, fmt.Errorf("candidate %s has no telegram chat", candidateID)
	}
	return chatID, nil
}

type notificationPayload struct {
	SlotID   string    `json:"slot_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Purpose  string    `json:"purpose"`
	CityID   string    `json:"city_id"`
	Text     string    `json:"text"`
}

// enqueueNotification кладёт запись в outbox в рамках tx вызывающего.
func enqueueNotification(tx *gorm.DB, slot *model.Slot, t model.NotificationType, chatID int64, now time.Time) error {
	if slot.BookingID == nil {
		return fmt.Errorf("slot %s has no booking id", slot.ID)
	}

	raw, err := json.Marshal(notificationPayload{
		SlotID:   slot.ID.String(),
		StartsAt: slot.StartsAt,
		EndsAt:   slot.EndsAt,
		Purpose:  string(slot.Purpose),
		CityID:   slot.CityID.String(),
		Text: calendar.FormatSlotForUser(
			calendar.TimeRange{Start: slot.StartsAt, End: slot.EndsAt},
			nil, false, "",
		),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	n := model.OutboxNotification{
		Type:        t,
		ChatID:      chatID,
		SlotID:      slot.ID,
		BookingID:   *slot.BookingID,
		Payload:     datatypes.JSON(raw),
		Status:      model.OutboxStatusPending,
		NextRetryAt: now,
	}
	if err := tx.Create(&n).Error; err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func writeEvent(tx *gorm.DB, t model.EventType, slot *model.Slot, details string) error {
	ev := model.Event{
		EventType: t,
		SlotID:    &slot.ID,
		BookingID: slot.BookingID,
		Details:   details,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}
