package memory

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/agentbridge/agentbridge/internal/errs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one embedded up/down SQL pair, keyed by its numeric prefix.
type migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

// migrator applies the embedded schema to a *sql.DB, tracking progress in a
// schema_migrations table so Open is idempotent across restarts.
type migrator struct {
	db         *sql.DB
	migrations []migration
}

func newMigrator(db *sql.DB) (*migrator, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	return &migrator{db: db, migrations: migrations}, nil
}

func (m *migrator) ensureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return errs.Database("create schema_migrations", err)
	}
	return nil
}

// up applies every pending migration in ascending id order.
func (m *migrator) up(ctx context.Context) error {
	if err := m.ensureSchema(ctx); err != nil {
		return err
	}
	applied, err := m.appliedIDs(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if applied[mig.ID] {
			continue
		}
		if strings.TrimSpace(mig.UpSQL) == "" {
			return errs.Database(fmt.Sprintf("migration %s has no up script", mig.ID), nil)
		}
		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Database(fmt.Sprintf("begin migration %s", mig.ID), err)
		}
		if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
			_ = tx.Rollback()
			return errs.Database(fmt.Sprintf("apply migration %s", mig.ID), err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`, mig.ID, nowRFC3339()); err != nil {
			_ = tx.Rollback()
			return errs.Database(fmt.Sprintf("record migration %s", mig.ID), err)
		}
		if err := tx.Commit(); err != nil {
			return errs.Database(fmt.Sprintf("commit migration %s", mig.ID), err)
		}
	}
	return nil
}

func (m *migrator) appliedIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, errs.Database("query schema_migrations", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Database("scan schema_migrations", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func loadMigrations() ([]migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, errs.Configuration("list embedded migrations", err)
	}

	entries := map[string]*migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		var suffix string
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, errs.Configuration(fmt.Sprintf("read migration %s", path), err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]migration, 0, len(ids))
	for _, id := range ids {
		out = append(out, *entries[id])
	}
	return out, nil
}
