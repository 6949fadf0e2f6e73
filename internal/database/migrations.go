package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

// Migration is one versioned schema change
type Migration struct {
	Version  int
	Name     string
	UpFile   string
	DownFile string
}

// LoadMigrations returns the embedded migrations sorted by version
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationsFS, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %q: %w", m[1], err)
		}
		item, ok := byVersion[version]
		if !ok {
			item = &Migration{Version: version, Name: m[2]}
			byVersion[version] = item
		}
		path := dir + "/" + entry.Name()
		if m[3] == "up" {
			item.UpFile = path
		} else {
			item.DownFile = path
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, item := range byVersion {
		if item.UpFile == "" {
			return nil, fmt.Errorf("migration %04d_%s has no up script", item.Version, item.Name)
		}
		migrations = append(migrations, *item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT        NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// Migrate applies every embedded migration that has not been applied yet.
// Each migration runs in its own transaction together with its ledger row.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return 0, err
	}

	migrations, err := LoadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		script, err := migrationsFS.ReadFile(m.UpFile)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %d: %w", m.Version, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(script)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %04d_%s: %w", m.Version, m.Name, err)
		}

		applied++
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Migration applied")
	}
	return applied, nil
}

// RollbackLast reverts the most recently applied migration
func RollbackLast(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	var version int
	err := pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read last migration: %w", err)
	}

	migrations, err := LoadMigrations()
	if err != nil {
		return err
	}
	var target *Migration
	for i := range migrations {
		if migrations[i].Version == version {
			target = &migrations[i]
		}
	}
	if target == nil || target.DownFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}

	script, err := migrationsFS.ReadFile(target.DownFile)
	if err != nil {
		return fmt.Errorf("failed to read down migration %d: %w", version, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(script)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to roll back migration %d: %w", version, err)
	}

	log.Info().Int("version", version).Str("name", target.Name).Msg("Migration rolled back")
	return nil
}
