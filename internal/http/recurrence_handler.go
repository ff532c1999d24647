package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/recurrence"
)

type recurrenceService interface {
	ExpandRecurringTemplate(ctx context.Context, template application.RecurringTemplate) ([]application.RecurringInstance, error)
	CreateRecurringSeries(ctx context.Context, template application.RecurringTemplate) (application.RecurringSeries, error)
	EffectiveStatus(appointment application.Appointment) application.Status
}

// RecurrenceHandler serves recurring series previews and bookings.
type RecurrenceHandler struct {
	service   recurrenceService
	responder responder
}

// NewRecurrenceHandler builds a RecurrenceHandler.
func NewRecurrenceHandler(service recurrenceService, logger *slog.Logger) *RecurrenceHandler {
	return &RecurrenceHandler{service: service, responder: newResponder(logger)}
}

// Preview expands a template without storing anything.
func (h *RecurrenceHandler) Preview(c *gin.Context) {
	template, ok := h.bindTemplate(c)
	if !ok {
		return
	}
	instances, err := h.service.ExpandRecurringTemplate(c.Request.Context(), template)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, gin.H{"instances": h.instances(instances)})
}

// Create books every instance of a template.
func (h *RecurrenceHandler) Create(c *gin.Context) {
	template, ok := h.bindTemplate(c)
	if !ok {
		return
	}
	series, err := h.service.CreateRecurringSeries(c.Request.Context(), template)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	appointments := make([]appointmentDTO, 0, len(series.Appointments))
	for _, a := range series.Appointments {
		appointments = append(appointments, newAppointmentDTO(a, h.service.EffectiveStatus(a)))
	}
	h.responder.writeJSON(c, http.StatusCreated, seriesDTO{
		RecurringTaskID: series.RecurringTaskID,
		Appointments:    appointments,
		Skipped:         h.instances(series.Skipped),
	})
}

func (h *RecurrenceHandler) bindTemplate(c *gin.Context) (application.RecurringTemplate, bool) {
	var req recurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return application.RecurringTemplate{}, false
	}
	template, err := req.toTemplate()
	if err != nil {
		h.responder.handleServiceError(c, err)
		return application.RecurringTemplate{}, false
	}
	return template, true
}

func (h *RecurrenceHandler) instances(in []application.RecurringInstance) []instanceDTO {
	out := make([]instanceDTO, 0, len(in))
	for _, instance := range in {
		out = append(out, instanceDTO{
			Sequence:    instance.Sequence,
			Appointment: newAppointmentDTO(instance.Appointment, h.service.EffectiveStatus(instance.Appointment)),
		})
	}
	return out
}

type recurrenceRequest struct {
	appointmentRequest
	IsRecurring        *bool  `json:"is_recurring"`
	RecurrencePattern  string `json:"recurrence_pattern"`
	RecurrenceInterval int    `json:"recurrence_interval"`
	RecurrenceEndDate  string `json:"recurrence_end_date"`
	RecurrenceEndCount int    `json:"recurrence_end_count"`
}

// toTemplate defaults is_recurring to true; an explicit false is passed
// through so the service reports it.
func (r recurrenceRequest) toTemplate() (application.RecurringTemplate, error) {
	pattern, err := recurrence.ParsePattern(r.RecurrencePattern)
	if err != nil {
		return application.RecurringTemplate{}, fieldError("recurrence_pattern", "pattern must be one of daily, weekly, monthly, yearly")
	}
	isRecurring := true
	if r.IsRecurring != nil {
		isRecurring = *r.IsRecurring
	}
	return application.RecurringTemplate{
		Input:       r.toInput(),
		IsRecurring: isRecurring,
		Pattern:     pattern,
		Interval:    r.RecurrenceInterval,
		EndDate:     r.RecurrenceEndDate,
		EndCount:    r.RecurrenceEndCount,
	}, nil
}

type instanceDTO struct {
	Sequence    int            `json:"sequence"`
	Appointment appointmentDTO `json:"appointment"`
}

type seriesDTO struct {
	RecurringTaskID string           `json:"recurring_task_id"`
	Appointments    []appointmentDTO `json:"appointments"`
	Skipped         []instanceDTO    `json:"skipped"`
}
