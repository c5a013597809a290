package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Migrations is the ordered schema for the meetflow service. Each entry runs
// at most once; applied versions are tracked in schema_migrations.
var Migrations = []Migration{
	{
		Version: "001",
		Name:    "create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				email      TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
	},
	{
		Version: "002",
		Name:    "create_agents",
		SQL: `
			CREATE TABLE IF NOT EXISTS agents (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL,
				name         TEXT NOT NULL,
				instructions TEXT NOT NULL DEFAULT '',
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
	},
	{
		Version: "003",
		Name:    "create_meetings",
		SQL: `
			CREATE TABLE IF NOT EXISTS meetings (
				id             TEXT PRIMARY KEY,
				user_id        TEXT NOT NULL,
				agent_id       TEXT NOT NULL,
				name           TEXT NOT NULL DEFAULT '',
				status         TEXT NOT NULL DEFAULT 'upcoming'
					CHECK (status IN ('upcoming','active','processing','completed','cancelled')),
				started_at     TIMESTAMPTZ,
				ended_at       TIMESTAMPTZ,
				transcript_url TEXT,
				recording_url  TEXT,
				summary        TEXT,
				created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
	},
	{
		Version: "004",
		Name:    "index_meetings_status",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings (status)`,
	},
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// RunMigrations applies all pending migrations in order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	result := &MigrationResult{}
	for _, m := range Migrations {
		if applied[m.Version] {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to begin migration %s: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return result, fmt.Errorf("migration %s (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name,
		); err != nil {
			tx.Rollback(ctx)
			return result, fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
