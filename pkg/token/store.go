package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS token_counts (
	path        TEXT    NOT NULL,
	mtime_nanos INTEGER NOT NULL,
	size_bytes  INTEGER NOT NULL,
	tokenizer   TEXT    NOT NULL,
	tokens      INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (path, tokenizer)
);`

// SQLiteStore keeps counts in a SQLite database. One row is kept per path
// and tokenizer; a stale modification time is a miss and gets replaced.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenStore opens or creates the database at dbPath. ":memory:" is
// accepted for tests.
func OpenStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// The driver applies these to every new connection.
		dsn += "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// migrateAttempts bounds schema creation while another process holds
// the write lock past the busy timeout.
const migrateAttempts = 5

func (s *SQLiteStore) migrate() error {
	wait := 10 * time.Millisecond
	for attempt := 1; ; attempt++ {
		_, err := s.db.Exec(schema)
		if err == nil || !locked(err) || attempt == migrateAttempts {
			return err
		}
		time.Sleep(wait)
		wait *= 2
	}
}

func locked(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// Get returns the stored count when the row matches key exactly.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (int, bool, error) {
	var tokens int
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens FROM token_counts
		 WHERE path = ? AND tokenizer = ? AND mtime_nanos = ? AND size_bytes = ?`,
		key.Path, key.Tokenizer, key.ModTime, key.Size,
	).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query token count: %w", err)
	}
	return tokens, true, nil
}

// Put upserts the count for key.
func (s *SQLiteStore) Put(ctx context.Context, key Key, tokens int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_counts (path, mtime_nanos, size_bytes, tokenizer, tokens, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path, tokenizer) DO UPDATE SET
		   mtime_nanos = excluded.mtime_nanos,
		   size_bytes  = excluded.size_bytes,
		   tokens      = excluded.tokens,
		   updated_at  = excluded.updated_at`,
		key.Path, key.ModTime, key.Size, key.Tokenizer, tokens, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store token count: %w", err)
	}
	return nil
}

// Prune removes rows not refreshed since cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM token_counts WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune token counts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
