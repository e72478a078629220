// Package library persists metadata about finalized recordings, replay
// clips, and exports in SQLite, with full-text search over titles and
// paths.
package library

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"clipforge/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes; an existing database with a
// different version is rejected rather than migrated.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates an incompatible on-disk schema.
	ErrSchemaMismatch = errors.New("library schema version mismatch")
	// ErrNotFound indicates no matching library entry.
	ErrNotFound = errors.New("library entry not found")
)

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

// Store is the SQLite-backed library.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the library database, creating it when absent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.LibraryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
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

func (s *Store) execRetry(ctx context.Context, query string, args ...any) error {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(busyRetryBackoff << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

const recordingColumns = `id, title, path, size_bytes, duration_seconds,
	width, height, fps, codec, container, source_type, created_at`

// Insert stores a new library entry.
func (s *Store) Insert(ctx context.Context, rec Recording) error {
	err := s.execRetry(ctx,
		`INSERT INTO recordings (`+recordingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Path, rec.SizeBytes, rec.DurationSeconds,
		rec.Width, rec.Height, rec.FPS, rec.Codec, rec.Container,
		string(rec.SourceType), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// List returns entries newest first. limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	return scanRecordings(rows)
}

// Search runs a full-text query over titles and paths, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedColumns("r")+`
		 FROM recordings_fts f
		 JOIN recordings r ON r.rowid = f.rowid
		 WHERE recordings_fts MATCH ?
		 ORDER BY r.created_at DESC`,
		ftsQuery(query),
	)
	if err != nil {
		return nil, fmt.Errorf("search recordings: %w", err)
	}
	defer rows.Close()
	return scanRecordings(rows)
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, ErrNotFound
	}
	return rec, err
}

// Remove deletes the entry with the given id and returns it.
func (s *Store) Remove(ctx context.Context, id string) (Recording, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Recording{}, err
	}
	if err := s.execRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return Recording{}, fmt.Errorf("remove recording: %w", err)
	}
	return rec, nil
}

// Count returns the number of library entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recordings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return count, nil
}

// ftsQuery quotes each term so user input cannot inject FTS operators.
func ftsQuery(input string) string {
	terms := strings.Fields(input)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(quoted, " ")
}

func qualifiedColumns(alias string) string {
	cols := strings.Split(recordingColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var (
		rec        Recording
		sourceType string
		createdAt  string
	)
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Path, &rec.SizeBytes, &rec.DurationSeconds,
		&rec.Width, &rec.Height, &rec.FPS, &rec.Codec, &rec.Container,
		&sourceType, &createdAt,
	)
	if err != nil {
		return Recording{}, err
	}
	rec.SourceType = SourceType(sourceType)
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		rec.CreatedAt = parsed
	}
	return rec, nil
}

func scanRecordings(rows *sql.Rows) ([]Recording, error) {
	var recordings []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}
