package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(DefaultSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerRunAppliesPendingOnce(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{
		"migrations/001_create_notes.sql": {Data: []byte("-- notes\nCREATE TABLE notes (id TEXT PRIMARY KEY);")},
		"migrations/002_add_body.sql":     {Data: []byte("ALTER TABLE notes ADD COLUMN body TEXT;\nCREATE INDEX idx_notes_body ON notes(body);")},
		"migrations/README.md":            {Data: []byte("ignored")},
	}
	manager := NewManager(NewScanner(files, "migrations"), NewExecutor(db), quietLogger())
	ctx := context.Background()

	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", applied)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO notes (id, body) VALUES ('n1', 'hello')"); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}

	applied, err = manager.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no pending migrations, got %d", applied)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount() != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestManagerRunRollsBackFailedMigration(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nINSERT INTO missing_table VALUES (1);")},
	}
	manager := NewManager(NewScanner(files, "m"), NewExecutor(db), quietLogger())

	applied, err := manager.Run(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 migration applied before failure, got %d", applied)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected failed migration to be rolled back")
	}
}

func TestManagerDetectsChecksumDrift(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{"m/001_init.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
	ctx := context.Background()
	if _, err := NewManager(NewScanner(files, "m"), NewExecutor(db), quietLogger()).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	files["m/001_init.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}
	_, err := NewManager(NewScanner(files, "m"), NewExecutor(db), quietLogger()).Run(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestScannerRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {"m/init.sql": {Data: []byte("SELECT 1;")}},
		"duplicate": {
			"m/001_a.sql":  {Data: []byte("SELECT 1;")},
			"m/0001_b.sql": {Data: []byte("SELECT 1;")},
		},
		"empty": {"m/001_empty.sql": {Data: []byte("  \n")}},
	}
	for name, files := range cases {
		if _, err := NewScanner(files, "m").Scan(); err == nil {
			t.Fatalf("%s: expected scan error", name)
		}
	}

	gap := fstest.MapFS{
		"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		"m/003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
	}
	_, err := NewManager(NewScanner(gap, "m"), NewExecutor(openTestDB(t)), quietLogger()).Run(context.Background())
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n  -- note\nCREATE INDEX i ON a(id);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a(id)" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}

func TestSQLiteConfigValidate(t *testing.T) {
	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatalf("expected empty DSN to be rejected")
	}
	cfg := DefaultSQLiteConfig("x.db")
	cfg.JournalMode = "FAST"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid journal mode to be rejected")
	}
	if databaseDir("file:x.db") != "" || databaseDir(":memory:") != "" || databaseDir("data/x.db") != "data" {
		t.Fatalf("unexpected databaseDir results")
	}
}
