package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/ics"
)

type calendarService interface {
	ListAppointmentsInRange(ctx context.Context, from, to string) ([]application.Appointment, error)
}

// CalendarHandler serves the iCalendar export.
type CalendarHandler struct {
	service   calendarService
	responder responder
	options   ics.Options
}

// NewCalendarHandler builds a CalendarHandler.
func NewCalendarHandler(service calendarService, options ics.Options, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, responder: newResponder(logger), options: options}
}

// Export renders the appointments between from and to. A matching
// If-None-Match header yields 304.
func (h *CalendarHandler) Export(c *gin.Context) {
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		h.responder.handleServiceError(c, fieldError("from", "from and to are required"))
		return
	}

	appointments, err := h.service.ListAppointmentsInRange(c.Request.Context(), from, to)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	doc, err := ics.Render(appointments, h.options)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	c.Header("ETag", doc.ETag)
	c.Header("Cache-Control", "no-cache")
	if match := c.GetHeader("If-None-Match"); match != "" && match == doc.ETag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, ics.ContentType, doc.Body)
}
