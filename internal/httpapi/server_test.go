package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/dispatch"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
	"github.com/hireline/recruiting-core/internal/service"
)

func newAPIDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL,
			display_name TEXT,
			contact_phone TEXT,
			note TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE candidates (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			city_id TEXT,
			comment TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE recruiters (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			description TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE cities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			time_zone TEXT,
			is_active INTEGER,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE slots (
			id TEXT PRIMARY KEY,
			recruiter_id TEXT NOT NULL,
			city_id TEXT NOT NULL,
			starts_at DATETIME NOT NULL,
			ends_at DATETIME NOT NULL,
			purpose TEXT NOT NULL,
			status TEXT NOT NULL,
			candidate_id TEXT,
			booking_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
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
		`CREATE TABLE events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			created_at DATETIME,
			slot_id TEXT,
			booking_id TEXT,
			details TEXT
		);`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestServer(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	reservations := service.NewReservationService(db, logger)
	cal := service.NewCalendarService(
		repository.NewGormSlotRepository(db),
		repository.NewGormScheduleRepository(db),
		repository.NewGormRecruiterRepository(db),
		repository.NewGormCityRepository(db),
		logger,
	)
	identity := service.NewIdentityService(
		repository.NewGormUserRepository(db),
		repository.NewGormCandidateRepository(db),
	)
	srv := NewServer(reservations, cal, identity,
		repository.NewGormOutboxRepository(db), dispatch.NewHealth(), logger)
	return srv.Router()
}

func seedAPIFixture(t *testing.T, db *gorm.DB) (recruiterID, cityID uuid.UUID) {
	t.Helper()

	recruiterID = uuid.New()
	cityID = uuid.New()

	if err := db.Create(&model.User{ID: uuid.New(), TelegramID: 111}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Create(&model.Recruiter{ID: recruiterID, UserID: uuid.New(), DisplayName: "rec"}).Error; err != nil {
		t.Fatalf("seed recruiter: %v", err)
	}
	if err := db.Create(&model.City{ID: cityID, Name: "Москва", TimeZone: "Europe/Moscow", IsActive: true}).Error; err != nil {
		t.Fatalf("seed city: %v", err)
	}
	return recruiterID, cityID
}

func TestServer_ListSlots_Paged(t *testing.T) {
	db := newAPIDB(t)
	router := newTestServer(t, db)
	recruiterID, cityID := seedAPIFixture(t, db)

	base := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		slot := &model.Slot{
			ID:          uuid.New(),
			RecruiterID: recruiterID,
			CityID:      cityID,
			StartsAt:    base.Add(time.Duration(i) * time.Hour),
			EndsAt:      base.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			Purpose:     model.SlotPurposeInterview,
			Status:      model.SlotStatusFree,
		}
		if err := db.Create(slot).Error; err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/slots?recruiter_id=%s&page=1&page_size=2", recruiterID), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Items    []map[string]any `json:"items"`
		Page     int              `json:"page"`
		PageSize int              `json:"page_size"`
		HasNext  bool             `json:"has_next"`
		HasPrev  bool             `json:"has_prev"`
		Total    int64            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Total != 5 {
		t.Fatalf("expected 2 of 5 slots, got %d of %d", len(resp.Items), resp.Total)
	}
	if !resp.HasNext || resp.HasPrev {
		t.Fatalf("expected has_next && !has_prev on the first page, got %+v", resp)
	}
}

func TestServer_GetSlot(t *testing.T) {
	db := newAPIDB(t)
	router := newTestServer(t, db)
	recruiterID, cityID := seedAPIFixture(t, db)

	slot := &model.Slot{
		ID:          uuid.New(),
		RecruiterID: recruiterID,
		CityID:      cityID,
		StartsAt:    time.Now().UTC().Add(time.Hour),
		EndsAt:      time.Now().UTC().Add(90 * time.Minute),
		Purpose:     model.SlotPurposeInterview,
		Status:      model.SlotStatusFree,
	}
	if err := db.Create(slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/slots/"+slot.ID.String(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != slot.ID.String() || resp["status"] != string(model.SlotStatusFree) {
		t.Fatalf("unexpected slot payload: %v", resp)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/slots/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slot, got %d", w.Code)
	}
}

func TestServer_Cities(t *testing.T) {
	db := newAPIDB(t)
	router := newTestServer(t, db)

	body := `{"name":"Казань","time_zone":"Europe/Moscow"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Cities     []map[string]any `json:"cities"`
		TotalCount int64            `json:"total_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCount != 1 || len(resp.Cities) != 1 || resp.Cities[0]["name"] != "Казань" {
		t.Fatalf("unexpected cities payload: %+v", resp)
	}
}

func TestServer_GetProfile_IncludesCandidate(t *testing.T) {
	db := newAPIDB(t)
	router := newTestServer(t, db)

	body := `{"telegram_id":555001,"display_name":"Анна"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/555001", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["candidate_id"] == nil || resp["candidate_id"] == "" {
		t.Fatalf("expected candidate_id in profile, got %v", resp)
	}
	if resp["display_name"] != "Анна" {
		t.Fatalf("unexpected profile: %v", resp)
	}
}
