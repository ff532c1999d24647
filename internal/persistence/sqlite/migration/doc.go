// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS (normally an embed.FS) and must be named
// {version}_{description}.sql, e.g. "001_create_appointments.sql". Applied
// versions and their checksums are tracked in a schema_migrations table; each
// file runs in its own transaction together with its tracking row.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
