package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/timer"
	"github.com/example/appointment-engine/internal/timeutil"
)

var (
	errBadRequestBody       = errors.New("request body is not valid JSON")
	errInvalidAppointmentID = errors.New("appointment id is required")
)

const (
	codeBadRequest        = "BAD_REQUEST"
	codeValidation        = "VALIDATION_FAILED"
	codeFormat            = "INVALID_FORMAT"
	codeConflict          = "CONFLICT"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeNotFound          = "NOT_FOUND"
	codeRateLimited       = "RATE_LIMITED"
	codeUnavailable       = "UNAVAILABLE"
	codeInternal          = "INTERNAL"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func (r responder) writeError(c *gin.Context, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(c).WarnContext(c.Request.Context(), "request rejected", "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) handleServiceError(c *gin.Context, err error) {
	if err == nil {
		r.writeError(c, http.StatusInternalServerError, codeInternal, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
		tErr *timer.InvalidTransitionError
	)
	switch {
	case errors.Is(err, application.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: err.Error()})
	case errors.As(err, &vErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: codeValidation,
			Message:   "validation failed",
			Errors:    vErr.FieldErrors,
		})
	case errors.As(err, &cErr):
		conflicts := make([]conflictDTO, 0, len(cErr.Conflicts))
		for _, a := range cErr.Conflicts {
			conflicts = append(conflicts, conflictDTO{ID: a.ID, Title: a.Title, Date: a.Date, StartTime: a.StartTime, EndTime: a.EndTime})
		}
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{
			ErrorCode: codeConflict,
			Message:   cErr.Error(),
			Conflicts: conflicts,
		})
	case errors.As(err, &tErr):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{ErrorCode: codeInvalidTransition, Message: tErr.Error()})
	case errors.Is(err, timeutil.ErrFormat):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{ErrorCode: codeFormat, Message: err.Error()})
	default:
		r.loggerFor(c).ErrorContext(c.Request.Context(), "request failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: http.StatusText(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(c *gin.Context) *slog.Logger {
	return handlerLogger(c.Request.Context(), r.logger, c.HandlerName(), "")
}

// fieldError builds a single-field validation error for request parsing
// failures that never reach the service.
func fieldError(field, message string) *application.ValidationError {
	return &application.ValidationError{FieldErrors: map[string]string{field: message}}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
