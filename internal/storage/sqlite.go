package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/Aprilius996/ofac-monitor/internal/model"
	"github.com/Aprilius996/ofac-monitor/migrations"
)

const timeLayout = time.RFC3339Nano

const metaLastCheckedAt = "last_checked_at"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases shared and writes serial.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the full state.
func (s *SQLite) Load(ctx context.Context) (*model.State, error) {
	st := model.NewState()

	var lastCheck sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state_meta WHERE key = ?`, metaLastCheckedAt,
	).Scan(&lastCheck)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("%w: query last check: %w", model.ErrState, err)
	case lastCheck.Valid:
		t, err := time.Parse(timeLayout, lastCheck.String)
		if err != nil {
			return nil, fmt.Errorf("%w: parse last check %q: %w", model.ErrState, lastCheck.String, err)
		}
		st.LastCheckedAt = &t
	}

	if err := s.loadSet(ctx, `SELECT identifier FROM seen_identifiers`, st.MarkSeen); err != nil {
		return nil, err
	}
	if err := s.loadSet(ctx, `SELECT identifier FROM notified_identifiers`, st.MarkNotified); err != nil {
		return nil, err
	}
	if err := s.loadSet(ctx, `SELECT day FROM notified_days`, st.MarkDayNotified); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLite) loadSet(ctx context.Context, query string, add func(string)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: query: %w", model.ErrState, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("%w: scan: %w", model.ErrState, err)
		}
		add(v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate: %w", model.ErrState, err)
	}
	return nil
}

// Save writes the state in one transaction. The identifier and day sets
// only grow, so existing rows are kept.
func (s *SQLite) Save(ctx context.Context, state *model.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", model.ErrState, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)

	if state.LastCheckedAt != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaLastCheckedAt, state.LastCheckedAt.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("%w: upsert last check: %w", model.ErrState, err)
		}
	}

	sets := []struct {
		query  string
		values map[string]struct{}
	}{
		{`INSERT OR IGNORE INTO seen_identifiers (identifier, recorded_at) VALUES (?, ?)`, state.SeenIdentifiers},
		{`INSERT OR IGNORE INTO notified_identifiers (identifier, recorded_at) VALUES (?, ?)`, state.NotifiedIdentifiers},
		{`INSERT OR IGNORE INTO notified_days (day, recorded_at) VALUES (?, ?)`, state.NotifiedDays},
	}
	for _, set := range sets {
		stmt, err := tx.PrepareContext(ctx, set.query)
		if err != nil {
			return fmt.Errorf("%w: prepare: %w", model.ErrState, err)
		}
		for v := range set.values {
			if _, err := stmt.ExecContext(ctx, v, now); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("%w: insert %q: %w", model.ErrState, v, err)
			}
		}
		_ = stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", model.ErrState, err)
	}
	return nil
}
