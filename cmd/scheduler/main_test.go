package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/appointment-engine/internal/config"
	"github.com/example/appointment-engine/internal/lifecycle"
	"github.com/example/appointment-engine/internal/workschedule"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T, storage string) config.Config {
	t.Helper()
	return config.Config{
		Storage:              storage,
		SQLiteDSN:            filepath.Join(t.TempDir(), "scheduler.db"),
		SweepSchedule:        "@every 1h",
		AvailabilityCacheTTL: time.Second,
		RateLimitPerSec:      100,
		RateLimitBurst:       100,
		ShutdownTimeout:      5 * time.Second,
		SlotMinutes:          15,
		BreakMinutes:         5,
		Location:             time.UTC,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	lc := lifecycle.New(cfg.ShutdownTimeout, discardLogger())
	a, err := newApp(context.Background(), cfg, discardLogger(), lc)
	if err != nil {
		t.Fatalf("newApp returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := lc.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown returned error: %v", err)
		}
	})
	return a
}

func TestNewApp_ServesAppointmentLifecycle(t *testing.T) {
	for _, storage := range []string{config.StorageMemory, config.StorageSQLite} {
		t.Run(storage, func(t *testing.T) {
			a := startApp(t, testConfig(t, storage))

			body := `{"title":"Design review","date":"2024-06-10","start_time":"10:00","duration_minutes":30}`
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			a.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
			}

			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments?date=2024-06-10", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var list struct {
				Appointments []struct {
					Title      string `json:"title"`
					StartTime  string `json:"start_time"`
					IsPomodoro bool   `json:"is_pomodoro"`
				} `json:"appointments"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
				t.Fatalf("decode list: %v", err)
			}
			if len(list.Appointments) != 2 {
				t.Fatalf("expected appointment and its break, got %d", len(list.Appointments))
			}
			if brk := list.Appointments[1]; !brk.IsPomodoro || brk.StartTime != "10:30" {
				t.Fatalf("unexpected break: %+v", brk)
			}

			rec = httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected healthy store, got %d", rec.Code)
			}

			if err := a.sweeper.RunOnce(context.Background()); err != nil {
				t.Fatalf("sweep returned error: %v", err)
			}
		})
	}
}

func TestNewApp_RejectsMissingWorkScheduleFile(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	cfg.WorkScheduleFile = filepath.Join(t.TempDir(), "missing.yaml")

	lc := lifecycle.New(time.Second, discardLogger())
	if _, err := newApp(context.Background(), cfg, discardLogger(), lc); err == nil {
		t.Fatalf("expected error for missing work schedule file")
	}
	if err := lc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestLoadRules(t *testing.T) {
	t.Run("default week when no file is configured", func(t *testing.T) {
		rules, err := loadRules(config.Config{})
		if err != nil {
			t.Fatalf("loadRules returned error: %v", err)
		}
		if _, ok := rules.(workschedule.StaticSource); !ok {
			t.Fatalf("expected static source, got %T", rules)
		}
	})

	t.Run("reads the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		doc := `default:
  monday:
    - {start: "08:00", end: "16:00", type: work, working: true}
users:
  user-42:
    monday:
      - {start: "00:00", end: "24:00", type: unavailable}
`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write rules: %v", err)
		}

		rules, err := loadRules(config.Config{WorkScheduleFile: path})
		if err != nil {
			t.Fatalf("loadRules returned error: %v", err)
		}
		week, err := rules.RulesFor(context.Background(), "")
		if err != nil {
			t.Fatalf("RulesFor returned error: %v", err)
		}
		if got := week[time.Monday]; len(got) != 1 || got[0].StartTime != "08:00" {
			t.Fatalf("unexpected monday rules: %+v", got)
		}
	})
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	cfg := testConfig(t, config.StorageMemory)
	cfg.HTTPPort = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cancel, cfg, discardLogger()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}
