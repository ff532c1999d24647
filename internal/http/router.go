package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

// RouterConfig wires handlers and middleware into the engine. Nil handlers
// leave their routes unregistered.
type RouterConfig struct {
	Appointments *AppointmentHandler
	Recurrences  *RecurrenceHandler
	Schedules    *ScheduleHandler
	Calendar     *CalendarHandler
	Health       HealthFunc
	RateLimiter  *IPRateLimiter
	Middleware   []gin.HandlerFunc
}

// NewRouter builds the gin engine serving the API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.GET("/healthz", healthHandler(cfg.Health))

	api := r.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(RateLimit(cfg.RateLimiter))
	}

	if h := cfg.Appointments; h != nil {
		api.GET("/appointments", h.List)
		api.POST("/appointments", h.Create)
		api.GET("/appointments/:id", h.Get)
		api.PATCH("/appointments/:id", h.Update)
		api.DELETE("/appointments/:id", h.Delete)
		api.POST("/appointments/:id/timer/:action", h.Timer)
		api.GET("/appointments/:id/progress", h.Progress)
	}
	if h := cfg.Recurrences; h != nil {
		api.POST("/recurrences/preview", h.Preview)
		api.POST("/recurrences", h.Create)
	}
	if h := cfg.Schedules; h != nil {
		api.POST("/work-schedule/validate", h.Validate)
		api.GET("/availability", h.Availability)
	}
	if h := cfg.Calendar; h != nil {
		api.GET("/calendar.ics", h.Export)
	}

	return r
}

func healthHandler(check HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, errorResponse{ErrorCode: codeUnavailable, Message: err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
