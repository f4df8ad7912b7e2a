package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered schema history. Append only.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "users and verification tokens",
		SQL: `
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT,
		theme TEXT NOT NULL DEFAULT 'system',
		email_verified_at TEXT,
		totp_secret TEXT,
		totp_enabled INTEGER NOT NULL DEFAULT 0,
		recovery_codes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_login_at TEXT
	);

	CREATE TABLE verification_tokens (
		token_hash TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX idx_verification_tokens_identifier ON verification_tokens(identifier);
	CREATE INDEX idx_verification_tokens_expires_at ON verification_tokens(expires_at);
	`,
	},
	{
		Version:     2,
		Description: "goals, regions and tasks",
		SQL: `
	CREATE TABLE goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		target_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE regions (
		id TEXT PRIMARY KEY,
		goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		region_id TEXT NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		due_date TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX idx_goals_user_id ON goals(user_id);
	CREATE INDEX idx_goals_created_at ON goals(created_at);
	CREATE INDEX idx_regions_goal_id ON regions(goal_id);
	CREATE INDEX idx_tasks_region_id ON tasks(region_id);
	`,
	},
	{
		Version:     3,
		Description: "access logs",
		SQL: `
	CREATE TABLE access_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		event_code TEXT NOT NULL,
		message TEXT NOT NULL,
		actor TEXT,
		request_id TEXT,
		details TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX idx_logs_timestamp ON access_logs(timestamp);
	CREATE INDEX idx_logs_event_code ON access_logs(event_code);
	CREATE INDEX idx_logs_actor ON access_logs(actor);
	`,
	},
	{
		Version:     4,
		Description: "casbin route policies",
		SQL: `
	CREATE TABLE casbin_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ptype TEXT NOT NULL,
		v0 TEXT,
		v1 TEXT,
		v2 TEXT,
		v3 TEXT,
		v4 TEXT,
		v5 TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX idx_casbin_ptype ON casbin_policies(ptype);
	CREATE INDEX idx_casbin_v0 ON casbin_policies(v0);
	`,
	},
	{
		Version:     5,
		Description: "drop unserved static asset route",
		SQL:         `DELETE FROM casbin_policies WHERE ptype = 'p' AND v0 = 'anonymous' AND v1 = '/static/*'`,
	},
}

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`

// Up applies every migration newer than the recorded version, each in its
// own transaction, and returns how many ran.
func Up(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := Version(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Version returns the highest applied migration, or 0 on a fresh database.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var v sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("migration %d: recording version: %w", m.Version, err)
	}
	return tx.Commit()
}
