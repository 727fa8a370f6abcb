package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/calendar"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
)

var (
	ErrRecruiterNotFound = errors.New("recruiter not found")
	ErrCityNotFound      = errors.New("city not found")
	ErrCityNameRequired  = errors.New("city name is required")
	ErrNoSlotsGenerated  = errors.New("no slots generated")
)

// CalendarService — выдача свободных слотов боту и массовая генерация
// слотов из рабочих интервалов рекрутёра.
type CalendarService struct {
	slotRepo      repository.SlotRepository
	scheduleRepo  repository.ScheduleRepository
	recruiterRepo repository.RecruiterRepository
	cityRepo      repository.CityRepository
	logger        *zap.Logger
}

func NewCalendarService(
	slotRepo repository.SlotRepository,
	scheduleRepo repository.ScheduleRepository,
	recruiterRepo repository.RecruiterRepository,
	cityRepo repository.CityRepository,
	logger *zap.Logger,
) *CalendarService {
	return &CalendarService{
		slotRepo:      slotRepo,
		scheduleRepo:  scheduleRepo,
		recruiterRepo: recruiterRepo,
		cityRepo:      cityRepo,
		logger:        logger,
	}
}

// GetSlot возвращает слот по ID.
func (s *CalendarService) GetSlot(ctx context.Context, id string) (*model.Slot, error) {
	slot, err := s.slotRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// ListCities возвращает активные города.
func (s *CalendarService) ListCities(ctx context.Context) ([]model.City, int64, error) {
	return s.cityRepo.List(ctx, true, 0, 0)
}

// CreateCity заводит новый город проведения собеседований.
func (s *CalendarService) CreateCity(ctx context.Context, name, timeZone string) (*model.City, error) {
	if name == "" {
		return nil, ErrCityNameRequired
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
	}

	city := &model.City{Name: name, TimeZone: timeZone, IsActive: true}
	if err := s.cityRepo.Create(ctx, city); err != nil {
		return nil, err
	}
	return city, nil
}

// ListFreeSlots возвращает страницу свободных слотов рекрутёра.
func (s *CalendarService) ListFreeSlots(
	ctx context.Context,
	recruiterID, cityID string,
	from, to time.Time,
	page, pageSize int,
) ([]model.Slot, int64, error) {
	if !to.After(from) {
		return nil, 0, calendar.ErrInvalidTimeRange
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	return s.slotRepo.ListFreeSlots(ctx, recruiterID, cityID, from, to, pageSize, offset)
}

// GenerateParams — параметры генерации слотов из одного интервала.
type GenerateParams struct {
	RecruiterID  string
	CityID       string
	From         time.Time
	To           time.Time
	SlotDuration time.Duration
	AlignMinutes int
	Purpose      model.SlotPurpose
}

// GenerateSlots нарезает интервал [From, To) на слоты фиксированной
// длительности и создаёт их со статусом free. Куски, пересекающиеся с уже
// существующими слотами рекрутёра, пропускаются.
func (s *CalendarService) GenerateSlots(ctx context.Context, p GenerateParams) ([]model.Slot, error) {
	rec, err := s.recruiterRepo.GetByID(ctx, p.RecruiterID)
	if err != nil {
		return nil, ErrRecruiterNotFound
	}
	city, err := s.cityRepo.GetByID(ctx, p.CityID)
	if err != nil {
		return nil, ErrCityNotFound
	}

	tr, err := calendar.NormalizeTimeRange(p.From.UTC(), p.To.UTC(), time.UTC, 0)
	if err != nil {
		return nil, err
	}

	pieces, err := calendar.SplitToTimeSlots(tr, p.SlotDuration, p.AlignMinutes)
	if err != nil {
		return nil, err
	}

	existing, _, err := s.slotRepo.ListByRecruiterRange(ctx, p.RecruiterID, tr.Start, tr.End, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list existing slots: %w", err)
	}
	busy := make([]calendar.TimeRange, 0, len(existing))
	for _, sl := range existing {
		busy = append(busy, calendar.TimeRange{Start: sl.StartsAt, End: sl.EndsAt})
	}

	purpose := p.Purpose
	if purpose == "" {
		purpose = model.SlotPurposeInterview
	}

	var slots []model.Slot
	for _, piece := range pieces {
		if overlap, _ := calendar.HasOverlap(piece, busy, false); overlap {
			continue
		}
		slots = append(slots, model.Slot{
			RecruiterID: rec.ID,
			CityID:      city.ID,
			StartsAt:    piece.Start,
			EndsAt:      piece.End,
			Purpose:     purpose,
			Status:      model.SlotStatusFree,
		})
	}
	if len(slots) == 0 {
		return nil, ErrNoSlotsGenerated
	}

	if err := s.slotRepo.CreateBatch(ctx, slots); err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}

	s.logger.Info("slots generated",
		zap.String("recruiter_id", p.RecruiterID),
		zap.Int("count", len(slots)),
	)
	return slots, nil
}

// правило повторения в schedules.rules
type scheduleRule struct {
	Freq     string   `json:"freq"`     // daily | weekly
	Interval int      `json:"interval"` // шаг повторения
	Weekdays []int    `json:"weekdays"` // 0=воскресенье … 6=суббота
	StartsAt string   `json:"starts_at"`
	Duration string   `json:"duration"`
	Count    *int     `json:"count"`
	Excludes []string `json:"excludes"` // даты ГГГГ-ММ-ДД
}

// GenerateFromSchedule разворачивает правила повторения рабочих интервалов
// рекрутёра в слоты внутри окна [from, to).
func (s *CalendarService) GenerateFromSchedule(
	ctx context.Context,
	recruiterID string,
	from, to time.Time,
	slotDuration time.Duration,
) ([]model.Slot, error) {
	rec, err := s.recruiterRepo.GetByID(ctx, recruiterID)
	if err != nil {
		return nil, ErrRecruiterNotFound
	}

	schedules, err := s.scheduleRepo.ListByRecruiter(ctx, recruiterID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	window := calendar.TimeRange{Start: from.UTC(), End: to.UTC()}

	var all []model.Slot
	for _, sch := range schedules {
		if len(sch.Rules) == 0 {
			continue
		}
		var raw scheduleRule
		if err := json.Unmarshal(sch.Rules, &raw); err != nil {
			s.logger.Warn("skip schedule with malformed rules",
				zap.String("schedule_id", sch.ID.String()),
				zap.Error(err),
			)
			continue
		}

		rule, err := parseRule(raw)
		if err != nil {
			s.logger.Warn("skip schedule with invalid rules",
				zap.String("schedule_id", sch.ID.String()),
				zap.Error(err),
			)
			continue
		}

		occurrences, err := calendar.ExpandRecurringRule(rule, window)
		if err != nil {
			continue
		}
		for _, occ := range occurrences {
			pieces, err := calendar.SplitToTimeSlots(occ, slotDuration, 0)
			if err != nil {
				continue
			}
			for _, piece := range pieces {
				all = append(all, model.Slot{
					RecruiterID: rec.ID,
					CityID:      sch.CityID,
					StartsAt:    piece.Start,
					EndsAt:      piece.End,
					Purpose:     model.SlotPurposeInterview,
					Status:      model.SlotStatusFree,
				})
			}
		}
	}
	if len(all) == 0 {
		return nil, ErrNoSlotsGenerated
	}

	if err := s.slotRepo.CreateBatch(ctx, all); err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}
	return all, nil
}

func parseRule(raw scheduleRule) (calendar.RecurringRule, error) {
	start, err := time.Parse(time.RFC3339, raw.StartsAt)
	if err != nil {
		return calendar.RecurringRule{}, fmt.Errorf("parse starts_at: %w", err)
	}
	dur, err := time.ParseDuration(raw.Duration)
	if err != nil {
		return calendar.RecurringRule{}, fmt.Errorf("parse duration: %w", err)
	}

	rule := calendar.RecurringRule{
		Interval:  raw.Interval,
		StartTime: start.UTC(),
		Duration:  dur,
		Count:     raw.Count,
	}

	switch raw.Freq {
	case "weekly":
		rule.Freq = calendar.FreqWeekly
		for _, wd := range raw.Weekdays {
			if wd >= 0 && wd <= 6 {
				rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
			}
		}
	default:
		rule.Freq = calendar.FreqDaily
	}

	if len(raw.Excludes) > 0 {
		rule.Exceptions = make(map[time.Time]struct{}, len(raw.Excludes))
		for _, e := range raw.Excludes {
			d, err := time.Parse("2006-01-02", e)
			if err != nil {
				continue
			}
			rule.Exceptions[d] = struct{}{}
		}
	}

	return rule, nil
}
