package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/messaging"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
)

func newDispatchDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE outbox_notifications (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			slot_id TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			payload TEXT,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME,
			last_error TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE notification_logs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			created_at DATETIME
		);`,
		`CREATE UNIQUE INDEX idx_notification_dedup
			ON notification_logs(type, booking_id, chat_id);`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func enqueueRow(t *testing.T, db *gorm.DB, attempts int) *model.OutboxNotification {
	t.Helper()
	n := &model.OutboxNotification{
		ID:          uuid.New(),
		Type:        model.NotificationTypeConfirmation,
		ChatID:      777001,
		SlotID:      uuid.New(),
		BookingID:   uuid.New(),
		Payload:     []byte(`{"text":"hello"}`),
		Status:      model.OutboxStatusPending,
		Attempts:    attempts,
		NextRetryAt: time.Now().UTC(),
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return n
}

// scriptedSender отдаёт ошибки по сценарию, дальше — успех.
type scriptedSender struct {
	errs  []error
	calls int
}

func (s *scriptedSender) Send(_ context.Context, _ int64, _ []byte) error {
	defer func() { s.calls++ }()
	if s.calls < len(s.errs) {
		return s.errs[s.calls]
	}
	return nil
}

func newTestPool(db *gorm.DB, sender messaging.Sender, maxAttempts int) (*Pool, repository.OutboxRepository, repository.NotificationLogRepository, *Health) {
	outbox := repository.NewGormOutboxRepository(db)
	logRepo := repository.NewGormNotificationLogRepository(db)
	health := NewHealth()
	pool := NewPool(Config{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		RetryBase:    30 * time.Second,
		RetryCap:     time.Hour,
		MaxAttempts:  maxAttempts,
		ClaimLease:   time.Minute,
	}, outbox, logRepo, sender, rate.NewLimiter(rate.Inf, 0), health, zap.NewNop())
	return pool, outbox, logRepo, health
}

func TestPool_Deliver_RetryThenSuccess(t *testing.T) {
	db := newDispatchDB(t)
	sender := &scriptedSender{errs: []error{
		errors.New("status 500: upstream down"),
		errors.New("status 500: upstream down"),
		errors.New("status 500: upstream down"),
	}}
	pool, outbox, _, health := newTestPool(db, sender, 8)
	ctx := context.Background()

	row := enqueueRow(t, db, 0)

	// Три ретраябельных отказа подряд.
	for i := 1; i <= 3; i++ {
		claimed, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
		if err != nil || claimed == nil {
			t.Fatalf("claim %d: %v, row=%v", i, err, claimed)
		}
		pool.deliver(ctx, claimed)

		var after model.OutboxNotification
		if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if after.Status != model.OutboxStatusFailed {
			t.Fatalf("expected failed after retryable error, got %s", after.Status)
		}
		if after.Attempts != i {
			t.Fatalf("expected attempts=%d, got %d", i, after.Attempts)
		}
		if after.LastError == "" {
			t.Fatalf("expected last_error to be recorded")
		}
		if !after.NextRetryAt.After(time.Now().UTC()) {
			t.Fatalf("expected next_retry_at in the future, got %v", after.NextRetryAt)
		}

		// Дожидаемся бэкоффа "вручную".
		if err := db.Model(&model.OutboxNotification{}).
			Where("id = ?", row.ID).
			Update("next_retry_at", time.Now().UTC().Add(-time.Second)).Error; err != nil {
			t.Fatalf("rewind retry: %v", err)
		}
	}

	claimed, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("final claim: %v, row=%v", err, claimed)
	}
	pool.deliver(ctx, claimed)

	var after model.OutboxNotification
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != model.OutboxStatusSent {
		t.Fatalf("expected sent, got %s", after.Status)
	}
	// Счётчик попыток сохраняется и на успехе: три отказа плюс доставка.
	if after.Attempts != 4 {
		t.Fatalf("expected attempts=4 on the sent row, got %d", after.Attempts)
	}

	// Успех оставил отметку дедупликации.
	var logs int64
	if err := db.Model(&model.NotificationLog{}).
		Where("type = ? AND booking_id = ? AND chat_id = ?", row.Type, row.BookingID, row.ChatID).
		Count(&logs).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logs != 1 {
		t.Fatalf("expected 1 dedup mark, got %d", logs)
	}

	if health.Halted() {
		t.Fatalf("retryable errors must not halt delivery")
	}
}

func TestPool_Deliver_FatalShortCircuit(t *testing.T) {
	db := newDispatchDB(t)
	sender := &scriptedSender{errs: []error{&messaging.FatalError{Reason: "bot was blocked by the user"}}}
	pool, outbox, _, health := newTestPool(db, sender, 3)
	ctx := context.Background()

	row := enqueueRow(t, db, 0)

	claimed, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	pool.deliver(ctx, claimed)

	var after model.OutboxNotification
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != model.OutboxStatusFatal {
		t.Fatalf("expected fatal without retries, got %s", after.Status)
	}
	if after.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", after.Attempts)
	}

	if !health.Halted() {
		t.Fatalf("fatal outcome must set the delivery-halted flag")
	}
	if snap := health.Snapshot(); snap.State != HealthStateFatal {
		t.Fatalf("expected fatal health state, got %s", snap.State)
	}
}

func TestPool_Deliver_RetryBudgetExhausted(t *testing.T) {
	db := newDispatchDB(t)
	sender := &scriptedSender{errs: []error{
		errors.New("status 502"),
		errors.New("status 502"),
		errors.New("status 502"),
	}}
	pool, outbox, _, health := newTestPool(db, sender, 3)
	ctx := context.Background()

	row := enqueueRow(t, db, 2) // две попытки уже сожжены

	claimed, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	pool.deliver(ctx, claimed)

	var after model.OutboxNotification
	if err := db.First(&after, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != model.OutboxStatusFatal {
		t.Fatalf("expected fatal after exhausting retries, got %s", after.Status)
	}
	if after.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", after.Attempts)
	}

	// Исчерпание бюджета — не процессная остановка.
	if health.Halted() {
		t.Fatalf("exhausted budget must not halt the whole pipeline")
	}
}

func TestOutboxRepository_ClaimNext_Exclusive(t *testing.T) {
	db := newDispatchDB(t)
	outbox := repository.NewGormOutboxRepository(db)
	ctx := context.Background()

	enqueueRow(t, db, 0)
	enqueueRow(t, db, 0)

	a, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || a == nil {
		t.Fatalf("claim a: %v", err)
	}
	b, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || b == nil {
		t.Fatalf("claim b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("two claims returned the same row %s", a.ID)
	}
	if a.Status != model.OutboxStatusInFlight || b.Status != model.OutboxStatusInFlight {
		t.Fatalf("claimed rows must be in_flight")
	}

	c, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil {
		t.Fatalf("claim c: %v", err)
	}
	if c != nil {
		t.Fatalf("expected empty queue, got %s", c.ID)
	}
}

func TestOutboxRepository_ClaimNext_RespectsRetrySchedule(t *testing.T) {
	db := newDispatchDB(t)
	outbox := repository.NewGormOutboxRepository(db)
	ctx := context.Background()

	row := enqueueRow(t, db, 1)
	if err := db.Model(&model.OutboxNotification{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":        model.OutboxStatusFailed,
			"next_retry_at": time.Now().UTC().Add(time.Hour),
		}).Error; err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != nil {
		t.Fatalf("row is not due yet, must not be claimed")
	}

	if err := db.Model(&model.OutboxNotification{}).
		Where("id = ?", row.ID).
		Update("next_retry_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("rewind: %v", err)
	}

	got, err = outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || got == nil {
		t.Fatalf("expected due row to be claimed, err=%v", err)
	}
	if got.ID != row.ID {
		t.Fatalf("claimed unexpected row %s", got.ID)
	}
}

func TestOutboxRepository_ClaimNext_ReclaimsExpiredLease(t *testing.T) {
	db := newDispatchDB(t)
	outbox := repository.NewGormOutboxRepository(db)
	ctx := context.Background()

	row := enqueueRow(t, db, 0)

	claimed, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != row.ID {
		t.Fatalf("claimed unexpected row %s", claimed.ID)
	}

	// Воркер "упал": исход не записан, запись осталась in_flight.
	// Внутри аренды её никто не трогает.
	got, err := outbox.ClaimNext(ctx, time.Now().UTC(), time.Minute)
	if err != nil {
		t.Fatalf("claim within lease: %v", err)
	}
	if got != nil {
		t.Fatalf("in_flight row must stay leased, got %s", got.ID)
	}

	// По истечении аренды запись снова доступна.
	got, err = outbox.ClaimNext(ctx, time.Now().UTC().Add(2*time.Minute), time.Minute)
	if err != nil || got == nil {
		t.Fatalf("expected expired lease to be reclaimed, err=%v", err)
	}
	if got.ID != row.ID {
		t.Fatalf("reclaimed unexpected row %s", got.ID)
	}
	if got.Status != model.OutboxStatusInFlight {
		t.Fatalf("reclaimed row must be in_flight, got %s", got.Status)
	}
}
