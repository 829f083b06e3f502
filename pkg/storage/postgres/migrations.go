package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/rhuss/aichat/pkg/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrate applies pending schema migrations, tracking applied versions in
// the schema_migrations table.
func (s *Store) migrate(ctx context.Context) error {
	return storage.ApplyMigrations(ctx, migrationFiles, "migrations", pgMigrator{s})
}

type pgMigrator struct{ s *Store }

func (m pgMigrator) Applied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
		version,
	).Scan(&exists)
	return exists, err
}

// Apply runs the migration and its bookkeeping insert in one transaction.
func (m pgMigrator) Apply(ctx context.Context, mig storage.Migration) error {
	tx, err := m.s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
		mig.Version,
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit(ctx)
}
