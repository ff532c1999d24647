// Package sqlite stores appointments in an SQLite database through the
// pure-Go modernc driver. The schema is applied from embedded migrations when
// the store opens.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/appointment-engine/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is the SQLite-backed persistence layer.
type Storage struct {
	*AppointmentRepository
	pool *ConnectionPool
}

// Open connects to the database described by config and applies pending
// migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(pool.DB()),
		logger,
	)
	applied, err := manager.Run(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	logger.Info("sqlite storage ready", slog.String("dsn", config.DSN), slog.Int("migrations_applied", applied))

	return &Storage{AppointmentRepository: NewAppointmentRepository(pool), pool: pool}, nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
