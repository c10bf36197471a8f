// Package history persists completed dictation sessions in a local SQLite
// database so past transcripts can be browsed and re-copied from the UI.
// Audio blobs are never stored, only metadata and text.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Logger is the subset of internal/logger the store writes through.
type Logger interface {
	Warn(format string, v ...interface{})
}

// Entry is one completed dictation session.
type Entry struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	PCMBytes   int
	StopReason string
	Transcript string
	// TranscribeLatency is the wall time of the transcription call
	TranscribeLatency time.Duration
	// Error holds the transcription failure message, empty on success
	Error string
}

// Config controls where history lives and how long it is kept.
type Config struct {
	Path string
	// RetentionDays removes entries older than this; 0 disables age pruning
	RetentionDays int
	// MaxEntries keeps only the newest N entries; 0 disables count pruning
	MaxEntries int
}

// Store wraps the SQLite-backed session history.
type Store struct {
	db    *sql.DB
	cfg   Config
	log   Logger
	clock func() time.Time
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...interface{}) {}

// Open initializes the history store, creating the database and schema as
// needed, and applies retention once at startup.
func Open(ctx context.Context, cfg Config, log Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if log == nil {
		log = nopLogger{}
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed: %v", err)
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    pcm_bytes INTEGER NOT NULL,
    stop_reason TEXT NOT NULL,
    transcript TEXT,
    transcribe_ms INTEGER,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one completed session.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, started_at, duration_ms, pcm_bytes, stop_reason, transcript, transcribe_ms, error)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UTC().Format(time.RFC3339Nano), e.Duration.Milliseconds(),
		e.PCMBytes, e.StopReason, e.Transcript, e.TranscribeLatency.Milliseconds(), e.Error)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// List returns the newest entries first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, pcm_bytes, stop_reason, transcript, transcribe_ms, error
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a single entry by id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, pcm_bytes, stop_reason, transcript, transcribe_ms, error
		 FROM sessions WHERE id = ?`, id)
	return scanEntry(row)
}

// Delete removes one entry by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

// Prune applies the configured retention: first by age, then by count.
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE started_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEntries)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var started string
	var durationMS, transcribeMS int64
	var transcript, errMsg sql.NullString
	if err := row.Scan(&e.ID, &started, &durationMS, &e.PCMBytes, &e.StopReason,
		&transcript, &transcribeMS, &errMsg); err != nil {
		return Entry{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
		e.StartedAt = ts
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond
	e.TranscribeLatency = time.Duration(transcribeMS) * time.Millisecond
	e.Transcript = transcript.String
	e.Error = errMsg.String
	return e, nil
}
