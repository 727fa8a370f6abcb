package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hireline/recruiting-core/internal/calendar"
	"github.com/hireline/recruiting-core/internal/dispatch"
	"github.com/hireline/recruiting-core/internal/repository"
	"github.com/hireline/recruiting-core/internal/service"
)

// Server — HTTP-поверхность ядра: API бронирования для чат-слоя и
// операционные эндпоинты.
type Server struct {
	reservations *service.ReservationService
	calendar     *service.CalendarService
	identity     *service.IdentityService
	outbox       repository.OutboxRepository
	health       *dispatch.Health
	logger       *zap.Logger
}

func NewServer(
	reservations *service.ReservationService,
	cal *service.CalendarService,
	identity *service.IdentityService,
	outbox repository.OutboxRepository,
	health *dispatch.Health,
	logger *zap.Logger,
) *Server {
	return &Server{
		reservations: reservations,
		calendar:     cal,
		identity:     identity,
		outbox:       outbox,
		health:       health,
		logger:       logger,
	}
}

// Router собирает маршруты.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	{
		api.GET("/slots", s.listSlots)
		api.GET("/slots/:id", s.getSlot)
		api.POST("/slots/:id/reserve", s.reserveSlot)
		api.POST("/slots/:id/reject", s.rejectSlot)
		api.POST("/slots/:id/reschedule", s.rescheduleSlot)
		api.POST("/slots/:id/confirm", s.confirmSlot)
		api.POST("/slots/:id/no-show", s.noShowSlot)
		api.POST("/recruiters/:id/slots/generate", s.generateSlots)
		api.POST("/recruiters/:id/slots/generate-from-schedule", s.generateFromSchedule)
		api.GET("/cities", s.listCities)
		api.POST("/cities", s.createCity)
		api.POST("/users", s.registerUser)
		api.GET("/users/:telegram_id", s.getProfile)
	}

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type reserveRequest struct {
	CandidateID string `json:"candidate_id" binding:"required,uuid"`
	RecruiterID string `json:"recruiter_id" binding:"required,uuid"`
	CityID      string `json:"city_id" binding:"required,uuid"`
}

func (s *Server) reserveSlot(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}

	slot, err := s.reservations.Reserve(c.Request.Context(), c.Param("id"), req.CandidateID, req.RecruiterID, req.CityID)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectSlot(c *gin.Context) {
	var req rejectRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "rejected"
	}

	slot, err := s.reservations.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

type rescheduleRequest struct {
	NewSlotID string `json:"new_slot_id" binding:"required,uuid"`
}

func (s *Server) rescheduleSlot(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}

	slot, err := s.reservations.Reschedule(c.Request.Context(), c.Param("id"), req.NewSlotID)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

func (s *Server) confirmSlot(c *gin.Context) {
	slot, err := s.reservations.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

func (s *Server) noShowSlot(c *gin.Context) {
	slot, err := s.reservations.MarkNoShow(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

func (s *Server) listSlots(c *gin.Context) {
	recruiterID := c.Query("recruiter_id")
	if recruiterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "recruiter_id is required"})
		return
	}

	from, err := parseTimeParam(c.Query("from"), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid from"})
		return
	}
	to, err := parseTimeParam(c.Query("to"), from.AddDate(0, 0, 14))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid to"})
		return
	}

	page := intParam(c, "page", 1)
	pageSize := intParam(c, "page_size", 20)

	slots, total, err := s.calendar.ListFreeSlots(c.Request.Context(), recruiterID, c.Query("city_id"), from, to, page, pageSize)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}

	items := make([]gin.H, 0, len(slots))
	for i := range slots {
		items = append(items, slotResponse(&slots[i]))
	}
	c.JSON(http.StatusOK, calendar.NewPage(items, page, pageSize, total))
}

func (s *Server) getSlot(c *gin.Context) {
	slot, err := s.calendar.GetSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotResponse(slot))
}

type generateRequest struct {
	CityID       string `json:"city_id" binding:"required,uuid"`
	From         string `json:"from" binding:"required"`
	To           string `json:"to" binding:"required"`
	DurationMin  int    `json:"duration_min" binding:"required,min=5"`
	AlignMinutes int    `json:"align_minutes"`
	Purpose      string `json:"purpose"`
}

func (s *Server) generateSlots(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid from"})
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid to"})
		return
	}

	slots, err := s.calendar.GenerateSlots(c.Request.Context(), service.GenerateParams{
		RecruiterID:  c.Param("id"),
		CityID:       req.CityID,
		From:         from,
		To:           to,
		SlotDuration: time.Duration(req.DurationMin) * time.Minute,
		AlignMinutes: req.AlignMinutes,
		Purpose:      purposeFromString(req.Purpose),
	})
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(slots)})
}

type generateFromScheduleRequest struct {
	From        string `json:"from" binding:"required"`
	To          string `json:"to" binding:"required"`
	DurationMin int    `json:"duration_min" binding:"required,min=5"`
}

func (s *Server) generateFromSchedule(c *gin.Context) {
	var req generateFromScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid from"})
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid to"})
		return
	}

	slots, err := s.calendar.GenerateFromSchedule(
		c.Request.Context(),
		c.Param("id"),
		from, to,
		time.Duration(req.DurationMin)*time.Minute,
	)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(slots)})
}

func (s *Server) listCities(c *gin.Context) {
	cities, total, err := s.calendar.ListCities(c.Request.Context())
	if err != nil {
		s.renderDomainError(c, err)
		return
	}

	items := make([]gin.H, 0, len(cities))
	for i := range cities {
		items = append(items, gin.H{
			"id":        cities[i].ID.String(),
			"name":      cities[i].Name,
			"time_zone": cities[i].TimeZone,
		})
	}
	c.JSON(http.StatusOK, gin.H{"cities": items, "total_count": total})
}

type createCityRequest struct {
	Name     string `json:"name" binding:"required"`
	TimeZone string `json:"time_zone"`
}

func (s *Server) createCity(c *gin.Context) {
	var req createCityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}

	city, err := s.calendar.CreateCity(c.Request.Context(), req.Name, req.TimeZone)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        city.ID.String(),
		"name":      city.Name,
		"time_zone": city.TimeZone,
	})
}

type registerRequest struct {
	TelegramID   int64  `json:"telegram_id" binding:"required"`
	DisplayName  string `json:"display_name"`
	ContactPhone string `json:"contact_phone"`
}

func (s *Server) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}

	u, cand, err := s.identity.RegisterCandidate(c.Request.Context(), req.TelegramID, req.DisplayName, req.ContactPhone)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      u.ID.String(),
		"candidate_id": cand.ID.String(),
		"telegram_id":  u.TelegramID,
	})
}

func (s *Server) getProfile(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": "invalid telegram_id"})
		return
	}

	u, cand, err := s.identity.GetProfile(c.Request.Context(), telegramID)
	if err != nil {
		s.renderDomainError(c, err)
		return
	}
	resp := gin.H{
		"user_id":       u.ID.String(),
		"telegram_id":   u.TelegramID,
		"display_name":  u.DisplayName,
		"contact_phone": u.ContactPhone,
	}
	if cand != nil {
		resp["candidate_id"] = cand.ID.String()
	}
	c.JSON(http.StatusOK, resp)
}

// healthz — операционный сигнал пайплайна доставки.
func (s *Server) healthz(c *gin.Context) {
	snap := s.health.Snapshot()

	backlog, err := s.outbox.Backlog(c.Request.Context())
	if err != nil {
		s.logger.Error("backlog query failed", zap.Error(err))
	}
	fatal, err := s.outbox.FatalCount(c.Request.Context())
	if err != nil {
		s.logger.Error("fatal count query failed", zap.Error(err))
	}

	status := http.StatusOK
	if snap.State == dispatch.HealthStateFatal {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"state":        snap.State,
		"last_poll_at": snap.LastPollAt,
		"halt_reason":  snap.HaltReason,
		"backlog":      backlog,
		"fatal_rows":   fatal,
	})
}
