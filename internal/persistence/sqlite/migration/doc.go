// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS, so they can be embedded in the
// binary or loaded from a directory with os.DirFS. File names follow the
// convention {version}_{description}.sql (e.g. "001_initial_schema.sql") and
// versions must form a gap-free sequence.
//
// Applied versions are tracked in the schema_migrations table. Each
// migration runs in its own transaction together with its version record,
// so a failed migration leaves no trace.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(fsys), migration.NewExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
