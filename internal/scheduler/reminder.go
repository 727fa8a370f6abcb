package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hireline/recruiting-core/internal/calendar"
	"github.com/hireline/recruiting-core/internal/metrics"
	"github.com/hireline/recruiting-core/internal/model"
)

// ReminderWindow — "за сколько до начала слота слать напоминание какого типа".
type ReminderWindow struct {
	Offset time.Duration
	Type   model.NotificationType
}

// WindowsFromOffsets переводит сконфигурированные смещения в окна.
// Смещения без соответствующего типа уведомления игнорируются.
func WindowsFromOffsets(offsets []time.Duration) []ReminderWindow {
	var out []ReminderWindow
	for _, o := range offsets {
		switch o {
		case 6 * time.Hour:
			out = append(out, ReminderWindow{Offset: o, Type: model.NotificationTypeReminder6H})
		case 3 * time.Hour:
			out = append(out, ReminderWindow{Offset: o, Type: model.NotificationTypeReminder3H})
		case 2 * time.Hour:
			out = append(out, ReminderWindow{Offset: o, Type: model.NotificationTypeReminder2H})
		}
	}
	return out
}

// Reminder периодически находит бронирования, которым пора напомнить о
// предстоящем интервью, и ставит уведомления в outbox. Однопоточного
// кооперативного опроса достаточно: гонку двух тиков закрывает отметка
// дедупликации, вставляемая в одной транзакции с записью outbox, а
// уникальный индекс журнала — последний рубеж.
type Reminder struct {
	db       *gorm.DB
	windows  []ReminderWindow
	interval time.Duration
	logger   *zap.Logger
}

func NewReminder(db *gorm.DB, windows []ReminderWindow, interval time.Duration, logger *zap.Logger) *Reminder {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reminder{db: db, windows: windows, interval: interval, logger: logger}
}

// Run блокируется до отмены ctx.
func (r *Reminder) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	// первый тик сразу
	r.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// строка выборки "кому пора напомнить"
type dueBooking struct {
	ID         uuid.UUID
	BookingID  uuid.UUID
	StartsAt   time.Time
	EndsAt     time.Time
	Purpose    model.SlotPurpose
	CityID     uuid.UUID
	TelegramID int64
}

// Tick — один проход по всем окнам напоминаний.
func (r *Reminder) Tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, w := range r.windows {
		if err := r.enqueueWindow(ctx, w, now); err != nil {
			r.logger.Error("reminder window failed",
				zap.String("type", string(w.Type)),
				zap.Error(err),
			)
		}
	}
}

func (r *Reminder) enqueueWindow(ctx context.Context, w ReminderWindow, now time.Time) error {
	var due []dueBooking
	err := r.db.WithContext(ctx).
		Table("slots").
		Select("slots.id, slots.booking_id, slots.starts_at, slots.ends_at, slots.purpose, slots.city_id, users.telegram_id").
		Joins("JOIN candidates ON candidates.id = slots.candidate_id").
		Joins("JOIN users ON users.id = candidates.user_id").
		Where("slots.status IN ?", []model.SlotStatus{
			model.SlotStatusBooked,
			model.SlotStatusConfirmed,
		}).
		Where("slots.starts_at > ? AND slots.starts_at <= ?", now, now.Add(w.Offset)).
		Where("NOT EXISTS (SELECT 1 FROM notification_logs nl WHERE nl.type = ? AND nl.booking_id = slots.booking_id AND nl.chat_id = users.telegram_id)", w.Type).
		Scan(&due).Error
	if err != nil {
		return fmt.Errorf("query due bookings: %w", err)
	}

	for _, d := range due {
		if err := r.enqueueOne(ctx, w.Type, d, now); err != nil {
			r.logger.Error("enqueue reminder failed",
				zap.String("slot_id", d.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// enqueueOne вставляет отметку дедупликации и запись outbox в одной
// транзакции. Отметка-плейсхолдер ставится сразу, а не при отправке:
// это закрывает гонку, где два тика оба видят "отметки ещё нет" и
// ставят напоминание дважды. Конфликт на вставке = кто-то успел раньше,
// просто выходим без outbox-записи.
func (r *Reminder) enqueueOne(ctx context.Context, t model.NotificationType, d dueBooking, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.NotificationLog{
			Type:      t,
			BookingID: d.BookingID,
			ChatID:    d.TelegramID,
		})
		if res.Error != nil {
			return fmt.Errorf("insert dedup placeholder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Уже поставлено параллельным тиком.
			return nil
		}

		raw, err := json.Marshal(map[string]any{
			"slot_id":   d.ID.String(),
			"starts_at": d.StartsAt,
			"ends_at":   d.EndsAt,
			"purpose":   string(d.Purpose),
			"city_id":   d.CityID.String(),
			"text": calendar.FormatSlotForUser(
				calendar.TimeRange{Start: d.StartsAt, End: d.EndsAt},
				nil, false, "",
			),
		})
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		n := model.OutboxNotification{
			Type:        t,
			ChatID:      d.TelegramID,
			SlotID:      d.ID,
			BookingID:   d.BookingID,
			Payload:     datatypes.JSON(raw),
			Status:      model.OutboxStatusPending,
			NextRetryAt: now,
		}
		if err := tx.Create(&n).Error; err != nil {
			return fmt.Errorf("enqueue reminder: %w", err)
		}

		metrics.RemindersEnqueuedTotal.WithLabelValues(string(t)).Inc()
		return nil
	})
}
