package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/calendar"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/service"
)

// Доменные отказы отдаются вызывающему с конкретным тегом, никогда не
// схлопываются в общий 500.
func (s *Server) renderDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrRecruiterNotFound),
		errors.Is(err, service.ErrCityNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found"})
	case errors.Is(err, service.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"code": "slot_taken"})
	case errors.Is(err, service.ErrWrongRecruiter):
		c.JSON(http.StatusConflict, gin.H{"code": "wrong_recruiter"})
	case errors.Is(err, service.ErrWrongCity):
		c.JSON(http.StatusConflict, gin.H{"code": "wrong_city"})
	case errors.Is(err, service.ErrCandidateAlreadyBooked):
		c.JSON(http.StatusConflict, gin.H{"code": "candidate_already_booked"})
	case errors.Is(err, service.ErrSlotNotActive):
		c.JSON(http.StatusConflict, gin.H{"code": "slot_not_active"})
	case errors.Is(err, service.ErrNoSlotsGenerated):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "no_slots_generated"})
	case errors.Is(err, service.ErrInvalidTelegramID),
		errors.Is(err, service.ErrCityNameRequired),
		errors.Is(err, calendar.ErrInvalidTimeRange),
		errors.Is(err, calendar.ErrSlotDuration):
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
	default:
		s.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal"})
	}
}

func slotResponse(slot *model.Slot) gin.H {
	resp := gin.H{
		"id":           slot.ID.String(),
		"recruiter_id": slot.RecruiterID.String(),
		"city_id":      slot.CityID.String(),
		"starts_at":    slot.StartsAt,
		"ends_at":      slot.EndsAt,
		"purpose":      slot.Purpose,
		"status":       slot.Status,
		"updated_at":   slot.UpdatedAt,
	}
	if slot.CandidateID != nil {
		resp["candidate_id"] = slot.CandidateID.String()
	}
	if slot.BookingID != nil {
		resp["booking_id"] = slot.BookingID.String()
	}
	return resp
}

func purposeFromString(s string) model.SlotPurpose {
	if s == string(model.SlotPurposeIntroDay) {
		return model.SlotPurposeIntroDay
	}
	return model.SlotPurposeInterview
}

func parseTimeParam(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func intParam(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
