// Package sqlitestore keeps transcripts in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/linecut/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS clips (
	clip_id    TEXT PRIMARY KEY,
	duration   REAL NOT NULL DEFAULT 0,
	text       TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS segments (
	clip_id  TEXT NOT NULL REFERENCES clips(clip_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	start_sec REAL NOT NULL,
	end_sec   REAL NOT NULL,
	text     TEXT NOT NULL,
	words    TEXT,
	PRIMARY KEY (clip_id, position)
);
`

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT clip_id FROM clips ORDER BY clip_id`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Get(ctx context.Context, clipID string) (types.Transcript, error) {
	tr := types.Transcript{ClipID: clipID}
	err := s.db.QueryRowContext(ctx, `SELECT duration, text FROM clips WHERE clip_id = ?`, clipID).Scan(&tr.Duration, &tr.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID}
	}
	if err != nil {
		return types.Transcript{}, fmt.Errorf("get clip %s: %w", clipID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT start_sec, end_sec, text, words FROM segments WHERE clip_id = ? ORDER BY position`, clipID)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("get segments %s: %w", clipID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			seg   types.Segment
			words sql.NullString
		)
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Text, &words); err != nil {
			return types.Transcript{}, err
		}
		if words.Valid && words.String != "" {
			if err := json.Unmarshal([]byte(words.String), &seg.Words); err != nil {
				return types.Transcript{}, fmt.Errorf("decode words for %s: %w", clipID, err)
			}
		}
		tr.Segments = append(tr.Segments, seg)
	}
	return tr, rows.Err()
}

// Refresh is a no-op: every read goes to the database.
func (s *Store) Refresh(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put replaces the stored transcript for tr.ClipID.
func (s *Store) Put(ctx context.Context, tr types.Transcript) error {
	if tr.ClipID == "" {
		return errors.New("put transcript: clip id required")
	}
	return retryOnBusy(ctx, func() error { return s.put(ctx, tr) })
}

func (s *Store) put(ctx context.Context, tr types.Transcript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE clip_id = ?`, tr.ClipID); err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO clips (clip_id, duration, text, updated_at) VALUES (?, ?, ?, ?)`,
		tr.ClipID, tr.Duration, tr.Text, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	for i, seg := range tr.Segments {
		var words any
		if len(seg.Words) > 0 {
			b, err := json.Marshal(seg.Words)
			if err != nil {
				return err
			}
			words = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO segments (clip_id, position, start_sec, end_sec, text, words) VALUES (?, ?, ?, ?, ?, ?)`,
			tr.ClipID, i, seg.Start, seg.End, seg.Text, words,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}
