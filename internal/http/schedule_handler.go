package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/application"
)

type scheduleService interface {
	ValidateAgainstWorkSchedule(ctx context.Context, check application.WorkScheduleCheck) (application.Verdict, error)
	Availability(ctx context.Context, date, userID string) ([]application.AvailabilitySlot, error)
}

// ScheduleHandler serves work-schedule checks and availability scans.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

// NewScheduleHandler builds a ScheduleHandler.
func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

// Validate returns the advisory work-schedule verdict for a slot.
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req workScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	verdict, err := h.service.ValidateAgainstWorkSchedule(c.Request.Context(), application.WorkScheduleCheck{
		UserID:          req.UserID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, verdict)
}

// Availability scans one date for free and blocked slots.
func (h *ScheduleHandler) Availability(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		h.responder.handleServiceError(c, fieldError("date", "date is required"))
		return
	}
	slots, err := h.service.Availability(c.Request.Context(), date, strings.TrimSpace(c.Query("user_id")))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Free:      slot.Free,
			Overtime:  slot.Overtime,
			Reason:    slot.Reason,
			BlockedBy: slot.BlockedBy,
		})
	}
	h.responder.writeJSON(c, http.StatusOK, availabilityDTO{
		Date:  date,
		Slots: out,
		Free:  application.FreeSlots(slots),
	})
}

type workScheduleRequest struct {
	UserID          string `json:"user_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type slotDTO struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Free      bool     `json:"free"`
	Overtime  bool     `json:"overtime,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
}

type availabilityDTO struct {
	Date  string    `json:"date"`
	Slots []slotDTO `json:"slots"`
	Free  []string  `json:"free"`
}
