package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a single ordered schema step. Steps are applied inside a
// transaction and recorded in schema_migrations, so restarts skip work that
// already happened.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "users_and_sessions",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				full_name TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				gender TEXT NOT NULL DEFAULT '',
				home_address TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				is_admin INTEGER NOT NULL DEFAULT 0,
				profile_completed INTEGER NOT NULL DEFAULT 0,
				disabled INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				token TEXT NOT NULL UNIQUE,
				fingerprint TEXT NOT NULL DEFAULT '',
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
		},
	},
	{
		version: 2,
		name:    "week_schedules",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schedules (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				week_start TEXT NOT NULL,
				status TEXT NOT NULL,
				reviewer_id TEXT NOT NULL DEFAULT '',
				review_note TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				reviewed_at TEXT,
				UNIQUE (user_id, week_start)
			)`,
			`CREATE TABLE IF NOT EXISTS schedule_days (
				schedule_id TEXT NOT NULL REFERENCES schedules(id),
				day TEXT NOT NULL,
				pickup_time TEXT NOT NULL DEFAULT '',
				pickup_address_id TEXT NOT NULL DEFAULT '',
				pickup_address_name TEXT NOT NULL DEFAULT '',
				drop_address_id TEXT NOT NULL DEFAULT '',
				drop_address_name TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (schedule_id, day)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_schedules_user ON schedules(user_id, created_at)`,
		},
	},
	{
		version: 3,
		name:    "change_requests_and_trips",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS change_requests (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				week_start TEXT NOT NULL,
				day TEXT NOT NULL,
				old_time TEXT NOT NULL DEFAULT '',
				old_address_id TEXT NOT NULL DEFAULT '',
				old_address_name TEXT NOT NULL DEFAULT '',
				new_time TEXT NOT NULL,
				new_address_id TEXT NOT NULL,
				new_address_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				reviewer_id TEXT NOT NULL DEFAULT '',
				review_note TEXT NOT NULL DEFAULT '',
				requested_at TEXT NOT NULL,
				reviewed_at TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS trips (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				week_start TEXT NOT NULL,
				day TEXT NOT NULL,
				scheduled_time TEXT NOT NULL DEFAULT '',
				address_id TEXT NOT NULL DEFAULT '',
				address_name TEXT NOT NULL DEFAULT '',
				driver_name TEXT NOT NULL DEFAULT '',
				tracking_link TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				push_sent_at TEXT,
				eta_minutes INTEGER,
				qr_validated_at TEXT,
				started_at TEXT,
				ended_at TEXT,
				start_lat REAL,
				start_lng REAL,
				end_lat REAL,
				end_lng REAL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_trips_user_status ON trips(user_id, status)`,
		},
	},
	{
		version: 4,
		name:    "addresses_notifications_tokens",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS addresses (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				formatted_address TEXT NOT NULL,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				place_id TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_addresses_user ON addresses(user_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				dismissed_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS device_tokens (
				token TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				platform TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens(user_id)`,
		},
	},
}

// Migrate applies any schema steps not yet recorded in schema_migrations.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: ensure schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := d.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("sqlite: read applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("sqlite: scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterate applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := d.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("sqlite: migration %d (%s): %w", m.version, m.name, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, formatTime(nowUTC()))
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}
