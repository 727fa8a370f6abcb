package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
)

func newCalendarService(db *gorm.DB) *CalendarService {
	return NewCalendarService(
		repository.NewGormSlotRepository(db),
		repository.NewGormScheduleRepository(db),
		repository.NewGormRecruiterRepository(db),
		repository.NewGormCityRepository(db),
		zap.NewNop(),
	)
}

func execSchedulesDDL(t *testing.T, db *gorm.DB) {
	t.Helper()
	stmt := `CREATE TABLE schedules (
		id TEXT PRIMARY KEY,
		recruiter_id TEXT NOT NULL,
		city_id TEXT NOT NULL,
		start_date DATE,
		end_date DATE,
		time_zone TEXT,
		rules TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if err := db.Exec(stmt).Error; err != nil {
		t.Fatalf("create schedules: %v", err)
	}
}

func TestCalendarService_GenerateSlots(t *testing.T) {
	db := newCoreDB(t)
	f := seedCore(t, db)
	svc := newCalendarService(db)

	from := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	slots, err := svc.GenerateSlots(context.Background(), GenerateParams{
		RecruiterID:  f.recruiterID.String(),
		CityID:       f.cityID.String(),
		From:         from,
		To:           to,
		SlotDuration: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Status != model.SlotStatusFree {
			t.Fatalf("expected free slot, got %s", s.Status)
		}
	}

	var total int64
	if err := db.Model(&model.Slot{}).Count(&total).Error; err != nil {
		t.Fatalf("count slots: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 persisted slots, got %d", total)
	}
}

func TestCalendarService_GenerateSlots_SkipsOverlapping(t *testing.T) {
	db := newCoreDB(t)
	f := seedCore(t, db)
	svc := newCalendarService(db)

	// Уже существующий слот 10:30–11:00 выбивает один кусок.
	existing := &model.Slot{
		ID:          uuid.New(),
		RecruiterID: f.recruiterID,
		CityID:      f.cityID,
		StartsAt:    time.Date(2026, 9, 7, 10, 30, 0, 0, time.UTC),
		EndsAt:      time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC),
		Purpose:     model.SlotPurposeInterview,
		Status:      model.SlotStatusFree,
	}
	if err := db.Create(existing).Error; err != nil {
		t.Fatalf("seed existing slot: %v", err)
	}

	slots, err := svc.GenerateSlots(context.Background(), GenerateParams{
		RecruiterID:  f.recruiterID.String(),
		CityID:       f.cityID.String(),
		From:         time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
		To:           time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC),
		SlotDuration: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots (one skipped), got %d", len(slots))
	}
	for _, s := range slots {
		if s.StartsAt.Equal(existing.StartsAt) {
			t.Fatalf("expected overlapping piece to be skipped")
		}
	}
}

func TestCalendarService_GenerateSlots_UnknownRecruiter(t *testing.T) {
	db := newCoreDB(t)
	f := seedCore(t, db)
	svc := newCalendarService(db)

	_, err := svc.GenerateSlots(context.Background(), GenerateParams{
		RecruiterID:  uuid.New().String(),
		CityID:       f.cityID.String(),
		From:         time.Now().UTC(),
		To:           time.Now().UTC().Add(time.Hour),
		SlotDuration: 30 * time.Minute,
	})
	if !errors.Is(err, ErrRecruiterNotFound) {
		t.Fatalf("expected ErrRecruiterNotFound, got %v", err)
	}
}

func TestCalendarService_GenerateFromSchedule(t *testing.T) {
	db := newCoreDB(t)
	execSchedulesDDL(t, db)
	f := seedCore(t, db)
	svc := newCalendarService(db)

	rules := []byte(`{
		"freq": "daily",
		"interval": 1,
		"starts_at": "2026-09-07T09:00:00Z",
		"duration": "1h",
		"count": 3
	}`)
	if err := db.Create(&model.Schedule{
		ID:          uuid.New(),
		RecruiterID: f.recruiterID,
		CityID:      f.cityID,
		TimeZone:    "UTC",
		Rules:       datatypes.JSON(rules),
	}).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	slots, err := svc.GenerateFromSchedule(context.Background(), f.recruiterID.String(), from, to, 30*time.Minute)
	if err != nil {
		t.Fatalf("generate from schedule: %v", err)
	}

	// 3 ежедневных часовых интервала по два получасовых слота.
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
}

func TestCalendarService_ListFreeSlots_Paged(t *testing.T) {
	db := newCoreDB(t)
	f := seedCore(t, db)
	svc := newCalendarService(db)

	base := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := &model.Slot{
			ID:          uuid.New(),
			RecruiterID: f.recruiterID,
			CityID:      f.cityID,
			StartsAt:    base.Add(time.Duration(i) * time.Hour),
			EndsAt:      base.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			Purpose:     model.SlotPurposeInterview,
			Status:      model.SlotStatusFree,
		}
		if err := db.Create(s).Error; err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}
	// Занятый слот не попадает в выдачу.
	seedSlot(t, db, f, model.SlotStatusBooked, time.Hour)

	slots, total, err := svc.ListFreeSlots(context.Background(), f.recruiterID.String(), "", base, base.Add(24*time.Hour), 1, 2)
	if err != nil {
		t.Fatalf("list free: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(slots) != 2 {
		t.Fatalf("expected page of 2, got %d", len(slots))
	}
	if !slots[0].StartsAt.Before(slots[1].StartsAt) {
		t.Fatalf("expected slots ordered by starts_at")
	}

	second, _, err := svc.ListFreeSlots(context.Background(), f.recruiterID.String(), "", base, base.Add(24*time.Hour), 2, 2)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second) != 2 || second[0].ID == slots[0].ID {
		t.Fatalf("expected distinct second page")
	}
}
