package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/timer"
)

type appointmentService interface {
	CreateAppointment(ctx context.Context, input application.AppointmentInput) (application.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, patch application.AppointmentPatch) (application.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) (bool, error)
	GetAppointment(ctx context.Context, id string) (application.Appointment, error)
	ListAppointmentsByDate(ctx context.Context, date string) ([]application.Appointment, error)
	ListAppointmentsInRange(ctx context.Context, from, to string) ([]application.Appointment, error)
	ApplyTimerAction(ctx context.Context, id string, action timer.Action) (application.Appointment, error)
	Progress(ctx context.Context, id string) (application.Progress, error)
	EffectiveStatus(appointment application.Appointment) application.Status
}

// AppointmentHandler serves the appointment lifecycle endpoints.
type AppointmentHandler struct {
	service   appointmentService
	responder responder
	logger    *slog.Logger
}

// NewAppointmentHandler builds an AppointmentHandler.
func NewAppointmentHandler(service appointmentService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

// Create books an appointment and, for regular appointments, its break.
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	appointment, err := h.service.CreateAppointment(c.Request.Context(), req.toInput())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, h.toDTO(appointment))
}

// List returns the appointments of one date, or of an inclusive range.
func (h *AppointmentHandler) List(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))

	var (
		appointments []application.Appointment
		err          error
	)
	switch {
	case date != "":
		appointments, err = h.service.ListAppointmentsByDate(c.Request.Context(), date)
	case from != "" || to != "":
		appointments, err = h.service.ListAppointmentsInRange(c.Request.Context(), from, to)
	default:
		err = fieldError("date", "date or from/to is required")
	}
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	out := make([]appointmentDTO, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, h.toDTO(appointment))
	}
	h.responder.writeJSON(c, http.StatusOK, gin.H{"appointments": out})
}

// Get returns one appointment.
func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, h.toDTO(appointment))
}

// Update applies a partial update.
func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	appointment, err := h.service.UpdateAppointment(c.Request.Context(), id, patch)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, h.toDTO(appointment))
}

// Delete removes an appointment and its companion break.
func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteAppointment(c.Request.Context(), id)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	if !deleted {
		h.responder.handleServiceError(c, &application.NotFoundError{ID: id})
		return
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

// Timer applies a timer transition named by the :action path segment.
func (h *AppointmentHandler) Timer(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	action, err := timer.ParseAction(c.Param("action"))
	if err != nil {
		h.responder.handleServiceError(c, fieldError("action", "action must be one of start, pause, resume, complete"))
		return
	}

	handlerLogger(c.Request.Context(), h.logger, "AppointmentHandler", "Timer",
		"appointment_id", id, "action", string(action)).DebugContext(c.Request.Context(), "timer action requested")

	appointment, err := h.service.ApplyTimerAction(c.Request.Context(), id, action)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, h.toDTO(appointment))
}

// Progress returns the live timer view.
func (h *AppointmentHandler) Progress(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), id)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, progressDTO{
		AppointmentID:      progress.AppointmentID,
		Phase:              string(progress.Phase),
		PlannedMinutes:     progress.PlannedMinutes,
		AccumulatedMinutes: progress.AccumulatedMinutes,
		ElapsedMinutes:     progress.ElapsedMinutes,
		RemainingMinutes:   progress.RemainingMinutes,
		Overrun:            progress.Overrun,
	})
}

func (h *AppointmentHandler) appointmentID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errInvalidAppointmentID)
		return "", false
	}
	return id, true
}

func (h *AppointmentHandler) toDTO(a application.Appointment) appointmentDTO {
	return newAppointmentDTO(a, h.service.EffectiveStatus(a))
}

type appointmentRequest struct {
	UserID          string `json:"user_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPomodoro      bool   `json:"is_pomodoro"`
	SLAMinutes      *int   `json:"sla_minutes"`
}

func (r appointmentRequest) toInput() application.AppointmentInput {
	return application.AppointmentInput{
		UserID:          r.UserID,
		Title:           r.Title,
		Description:     r.Description,
		Date:            r.Date,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		IsPomodoro:      r.IsPomodoro,
		SLAMinutes:      r.SLAMinutes,
	}
}

type patchRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Date            *string `json:"date"`
	StartTime       *string `json:"start_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	Status          *string `json:"status"`
	SLAMinutes      *int    `json:"sla_minutes"`
}

func (r patchRequest) toPatch() (application.AppointmentPatch, error) {
	patch := application.AppointmentPatch{
		Title:           r.Title,
		Description:     r.Description,
		Date:            r.Date,
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		SLAMinutes:      r.SLAMinutes,
	}
	if r.Status != nil {
		status, err := application.ParseStatus(*r.Status)
		if err != nil {
			return application.AppointmentPatch{}, fieldError("status", err.Error())
		}
		patch.Status = &status
	}
	return patch, nil
}

type appointmentDTO struct {
	ID                        string     `json:"id"`
	UserID                    string     `json:"user_id,omitempty"`
	Title                     string     `json:"title"`
	Description               string     `json:"description,omitempty"`
	Date                      string     `json:"date"`
	StartTime                 string     `json:"start_time"`
	EndTime                   string     `json:"end_time"`
	DurationMinutes           int        `json:"duration_minutes"`
	IsPomodoro                bool       `json:"is_pomodoro"`
	CompanionOfID             *string    `json:"companion_of_id,omitempty"`
	Status                    string     `json:"status"`
	EffectiveStatus           string     `json:"effective_status"`
	SLAMinutes                *int       `json:"sla_minutes,omitempty"`
	RescheduleCount           int        `json:"reschedule_count"`
	TimerState                string     `json:"timer_state"`
	TimerStartedAt            *time.Time `json:"timer_started_at,omitempty"`
	TimerPausedAt             *time.Time `json:"timer_paused_at,omitempty"`
	AccumulatedTimeMinutes    float64    `json:"accumulated_time_minutes"`
	ActualTimeMinutes         *float64   `json:"actual_time_minutes,omitempty"`
	CompletedAt               *time.Time `json:"completed_at,omitempty"`
	IsRecurring               bool       `json:"is_recurring"`
	RecurrencePattern         string     `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval        int        `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate         string     `json:"recurrence_end_date,omitempty"`
	RecurrenceEndCount        int        `json:"recurrence_end_count,omitempty"`
	ParentTaskID              *string    `json:"parent_task_id,omitempty"`
	RecurringTaskID           *string    `json:"recurring_task_id,omitempty"`
	IsRecurringTemplate       bool       `json:"is_recurring_template"`
	OriginalDate              string     `json:"original_date,omitempty"`
	WasRescheduledFromWeekend bool       `json:"was_rescheduled_from_weekend"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

func newAppointmentDTO(a application.Appointment, effective application.Status) appointmentDTO {
	return appointmentDTO{
		ID:                        a.ID,
		UserID:                    a.UserID,
		Title:                     a.Title,
		Description:               a.Description,
		Date:                      a.Date,
		StartTime:                 a.StartTime,
		EndTime:                   a.EndTime,
		DurationMinutes:           a.DurationMinutes,
		IsPomodoro:                a.IsPomodoro,
		CompanionOfID:             a.CompanionOfID,
		Status:                    a.Status.String(),
		EffectiveStatus:           effective.String(),
		SLAMinutes:                a.SLAMinutes,
		RescheduleCount:           a.RescheduleCount,
		TimerState:                a.Timer.State.String(),
		TimerStartedAt:            a.Timer.StartedAt,
		TimerPausedAt:             a.Timer.PausedAt,
		AccumulatedTimeMinutes:    a.Timer.AccumulatedMinutes,
		ActualTimeMinutes:         a.Timer.ActualMinutes,
		CompletedAt:               a.Timer.CompletedAt,
		IsRecurring:               a.IsRecurring,
		RecurrencePattern:         a.RecurrencePattern.String(),
		RecurrenceInterval:        a.RecurrenceInterval,
		RecurrenceEndDate:         a.RecurrenceEndDate,
		RecurrenceEndCount:        a.RecurrenceEndCount,
		ParentTaskID:              a.ParentTaskID,
		RecurringTaskID:           a.RecurringTaskID,
		IsRecurringTemplate:       a.IsRecurringTemplate,
		OriginalDate:              a.OriginalDate,
		WasRescheduledFromWeekend: a.WasRescheduledFromWeekend,
		CreatedAt:                 a.CreatedAt,
		UpdatedAt:                 a.UpdatedAt,
	}
}

type progressDTO struct {
	AppointmentID      string  `json:"appointment_id"`
	Phase              string  `json:"phase"`
	PlannedMinutes     int     `json:"planned_minutes"`
	AccumulatedMinutes float64 `json:"accumulated_minutes"`
	ElapsedMinutes     float64 `json:"elapsed_minutes"`
	RemainingMinutes   float64 `json:"remaining_minutes"`
	Overrun            bool    `json:"overrun"`
}
