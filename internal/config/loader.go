package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by SCHEDULER_STORAGE.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort             int
	Storage              string
	SQLiteDSN            string
	WorkScheduleFile     string
	SweepSchedule        string
	AvailabilityCacheTTL time.Duration
	RateLimitPerSec      float64
	RateLimitBurst       int
	ShutdownTimeout      time.Duration
	LogLevel             slog.Level
	SlotMinutes          int
	BreakMinutes         int
	Location             *time.Location
}

// Load parses configuration values from the current process environment,
// after merging an optional .env file from the working directory. Variables
// already set in the environment win over the file.
//
// Every invalid value is reported in a single error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	cfg := Config{
		HTTPPort:             8080,
		Storage:              StorageSQLite,
		SQLiteDSN:            "file:scheduler.db",
		SweepSchedule:        "@every 1m",
		AvailabilityCacheTTL: 30 * time.Second,
		RateLimitPerSec:      10,
		RateLimitBurst:       20,
		ShutdownTimeout:      10 * time.Second,
		LogLevel:             slog.LevelInfo,
		SlotMinutes:          15,
		BreakMinutes:         5,
		Location:             time.Local,
	}

	invalid := make([]string, 0, 2)
	positiveInt := func(key string, dst *int) {
		value := env(key)
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}
	positiveDuration := func(key string, dst *time.Duration) {
		value := env(key)
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = d
	}

	positiveInt("SCHEDULER_HTTP_PORT", &cfg.HTTPPort)
	positiveInt("SCHEDULER_RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	positiveInt("SCHEDULER_SLOT_MINUTES", &cfg.SlotMinutes)
	positiveInt("SCHEDULER_BREAK_MINUTES", &cfg.BreakMinutes)
	positiveDuration("SCHEDULER_AVAILABILITY_CACHE_TTL", &cfg.AvailabilityCacheTTL)
	positiveDuration("SCHEDULER_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if storage := strings.ToLower(env("SCHEDULER_STORAGE")); storage != "" {
		switch storage {
		case StorageSQLite, StorageMemory:
			cfg.Storage = storage
		default:
			invalid = append(invalid, "SCHEDULER_STORAGE")
		}
	}

	if dsn := env("SCHEDULER_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	cfg.WorkScheduleFile = env("SCHEDULER_WORK_SCHEDULE_FILE")
	if schedule := env("SCHEDULER_SWEEP_SCHEDULE"); schedule != "" {
		cfg.SweepSchedule = schedule
	}

	if value := env("SCHEDULER_RATE_LIMIT_PER_SEC"); value != "" {
		perSec, err := strconv.ParseFloat(value, 64)
		if err != nil || perSec <= 0 {
			invalid = append(invalid, "SCHEDULER_RATE_LIMIT_PER_SEC")
		} else {
			cfg.RateLimitPerSec = perSec
		}
	}

	if value := env("SCHEDULER_LOG_LEVEL"); value != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(value)); err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if value := env("SCHEDULER_TIMEZONE"); value != "" {
		loc, err := time.LoadLocation(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
