package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps every failure of a schema step.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrationLockKey serializes migrators of concurrently starting replicas.
const migrationLockKey int64 = 0x6c6561726e // "learn"

// Migration is one versioned schema step. AppliedAt and IsApplied are
// filled by Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded schema. A run is one transaction, so a
// failed version leaves the schema where it started.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator uses GetMigrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending version in order.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if mig.UpSQL == "" {
				return fmt.Errorf("%w: version %d has no up script", ErrMigrationFailed, mig.Version)
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
		}
		return nil
	})
}

// Rollback reverts the newest applied version. No-op on an empty schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	return m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		latest := 0
		for v := range applied {
			latest = max(latest, v)
		}
		if latest == 0 {
			return nil
		}

		mig, ok := m.find(latest)
		if !ok || mig.DownSQL == "" {
			return fmt.Errorf("%w: version %d has no down script", ErrMigrationFailed, latest)
		}
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("%w: revert version %d: %v", ErrMigrationFailed, latest, err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, latest)
		return err
	})
}

// Status lists all known versions with their applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	var out []Migration
	err := m.locked(ctx, func(_ pgx.Tx, applied map[int]time.Time) error {
		out = make([]Migration, len(m.migrations))
		copy(out, m.migrations)
		for i := range out {
			if at, ok := applied[out[i].Version]; ok {
				out[i].IsApplied = true
				out[i].AppliedAt = at
			}
		}
		return nil
	})
	return out, err
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

// locked runs fn in one transaction holding the migration advisory lock,
// after making sure the bookkeeping table exists.
func (m *Migrator) locked(ctx context.Context, fn func(pgx.Tx, map[int]time.Time) error) error {
	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
		if err != nil {
			return fmt.Errorf("read schema_migrations: %w", err)
		}
		defer rows.Close()

		applied := make(map[int]time.Time)
		for rows.Next() {
			var (
				v  int
				at time.Time
			)
			if err := rows.Scan(&v, &at); err != nil {
				return fmt.Errorf("scan schema_migrations: %w", err)
			}
			applied[v] = at
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return fn(tx, applied)
	})
}
