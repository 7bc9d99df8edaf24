package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_owners (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	user        TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_owners_session ON session_owners(session_id);
CREATE INDEX IF NOT EXISTS idx_session_owners_recorded ON session_owners(recorded_at);
`

// SQLite keeps an append-only log of owners in a local database file.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY between our own connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLite{db: db, ttl: ttl}, nil
}

// Put appends an owner row and prunes rows older than the TTL.
func (s *SQLite) Put(ctx context.Context, user, sessionID string) error {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_owners (session_id, user, recorded_at) VALUES (?, ?, ?)`,
		sessionID, user, now.UnixMilli(),
	); err != nil {
		return fmt.Errorf("sqlite insert: %w", err)
	}

	if s.ttl > 0 {
		cutoff := now.Add(-s.ttl).UnixMilli()
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_owners WHERE recorded_at < ?`, cutoff); err != nil {
			return fmt.Errorf("sqlite prune: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// Owner returns the most recent owner recorded for sessionID.
func (s *SQLite) Owner(ctx context.Context, sessionID string) (Owner, error) {
	if sessionID == "" {
		return Owner{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT user, recorded_at FROM session_owners WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	)
	return scanOwner(row, sessionID)
}

// Latest returns the most recent Put.
func (s *SQLite) Latest(ctx context.Context) (Owner, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user, recorded_at, session_id FROM session_owners ORDER BY id DESC LIMIT 1`,
	)

	var (
		owner Owner
		ms    int64
	)
	if err := row.Scan(&owner.User, &ms, &owner.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Owner{}, ErrNotFound
		}
		return Owner{}, fmt.Errorf("sqlite latest: %w", err)
	}
	owner.RecordedAt = time.UnixMilli(ms)
	return owner, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanOwner(row *sql.Row, sessionID string) (Owner, error) {
	var (
		user string
		ms   int64
	)
	if err := row.Scan(&user, &ms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Owner{}, ErrNotFound
		}
		return Owner{}, fmt.Errorf("sqlite owner: %w", err)
	}
	return Owner{User: user, SessionID: sessionID, RecordedAt: time.UnixMilli(ms)}, nil
}
