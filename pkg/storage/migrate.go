package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migration is one versioned schema change read from a file named
// NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator is the backend half of ApplyMigrations.
type Migrator interface {
	// Applied reports whether version is recorded. An error is treated as
	// "not applied" because the tracking table may not exist yet.
	Applied(ctx context.Context, version int) (bool, error)

	// Apply runs m and records its version atomically.
	Apply(ctx context.Context, m Migration) error
}

// LoadMigrations reads the .sql files in dir, ordered by version. Files
// without a numeric prefix are skipped.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// "002_create_chat_sessions.sql" -> 2
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: entry.Name(), SQL: string(content)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ApplyMigrations applies every migration in fsys/dir that m has not yet
// recorded.
func ApplyMigrations(ctx context.Context, fsys fs.FS, dir string, m Migrator) error {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		applied, err := m.Applied(ctx, mig.Version)
		if err != nil {
			applied = false
		}
		if applied {
			continue
		}

		slog.Info("applying migration", "file", mig.Name, "version", mig.Version)

		if err := m.Apply(ctx, mig); err != nil {
			return fmt.Errorf("applying migration %s: %w", mig.Name, err)
		}
	}
	return nil
}
