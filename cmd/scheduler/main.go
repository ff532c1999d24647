package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/config"
	httptransport "github.com/example/appointment-engine/internal/http"
	"github.com/example/appointment-engine/internal/ics"
	"github.com/example/appointment-engine/internal/lifecycle"
	"github.com/example/appointment-engine/internal/persistence"
	"github.com/example/appointment-engine/internal/persistence/memory"
	"github.com/example/appointment-engine/internal/persistence/sqlite"
	"github.com/example/appointment-engine/internal/persistence/sqlite/migration"
	"github.com/example/appointment-engine/internal/sweeper"
	"github.com/example/appointment-engine/internal/workschedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, logger *slog.Logger) error {
	lc := lifecycle.New(cfg.ShutdownTimeout, logger)
	lc.Listen(ctx, cancel)

	a, err := newApp(ctx, cfg, logger, lc)
	if err != nil {
		_ = lc.Shutdown(context.Background())
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	lc.Register("http", func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("scheduler API listening", "addr", server.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		result = fmt.Errorf("server encountered error: %w", err)
	}
	return errors.Join(result, lc.Shutdown(context.Background()))
}

// app is the wired service graph behind the HTTP server.
type app struct {
	handler http.Handler
	service *application.AppointmentService
	sweeper *sweeper.Sweeper
}

type store interface {
	persistence.AppointmentRepository
	Close() error
}

// newApp opens storage, builds the service and its transport, and starts the
// sweeper. Every component that needs stopping is registered with lc.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, lc *lifecycle.Manager) (*app, error) {
	st, health, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Register("storage", func(context.Context) error { return st.Close() })

	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}

	service := application.NewAppointmentService(
		application.NewStoreRepository(st),
		rules,
		uuid.NewString,
		time.Now,
		application.WithLogger(logger),
		application.WithLocation(cfg.Location),
		application.WithBreakMinutes(cfg.BreakMinutes),
		application.WithSlotMinutes(cfg.SlotMinutes),
		application.WithAvailabilityCacheTTL(cfg.AvailabilityCacheTTL),
	)

	sw, err := sweeper.New(service, sweeper.Config{Schedule: cfg.SweepSchedule}, logger)
	if err != nil {
		return nil, err
	}
	sw.Start()
	lc.Register("sweeper", sw.Stop)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Appointments: httptransport.NewAppointmentHandler(service, logger),
		Recurrences:  httptransport.NewRecurrenceHandler(service, logger),
		Schedules:    httptransport.NewScheduleHandler(service, logger),
		Calendar:     httptransport.NewCalendarHandler(service, ics.Options{Name: "Appointments"}, logger),
		Health:       health,
		RateLimiter:  httptransport.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		Middleware:   []gin.HandlerFunc{httptransport.RequestLogger(logger)},
	})

	return &app{handler: router, service: service, sweeper: sw}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, httptransport.HealthFunc, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; appointments are lost on exit")
		return memory.Open(), nil, nil
	default:
		st, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		return st, st.Ping, nil
	}
}

func loadRules(cfg config.Config) (workschedule.Source, error) {
	if cfg.WorkScheduleFile == "" {
		return workschedule.StaticSource{Week: workschedule.DefaultWeek()}, nil
	}
	file, err := workschedule.LoadFile(cfg.WorkScheduleFile)
	if err != nil {
		return nil, fmt.Errorf("load work schedule: %w", err)
	}
	return file, nil
}
