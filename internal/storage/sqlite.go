package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/jikan/internal/models"
)

// SQLiteStorage implements ResultStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content BLOB NOT NULL,
		table_json TEXT NOT NULL,
		warnings_json TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveResult inserts res. An empty ID is filled with a new UUID and CreatedAt is set.
func (s *SQLiteStorage) SaveResult(ctx context.Context, res *Result) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	tableJSON, err := json.Marshal(res.Table)
	if err != nil {
		return fmt.Errorf("failed to marshal table: %w", err)
	}
	warningsJSON, err := json.Marshal(res.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}
	res.CreatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, filename, content, table_json, warnings_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, res.Filename, res.Content, string(tableJSON), string(warningsJSON), res.CreatedAt,
	)
	return err
}

// GetResult returns a result by ID.
func (s *SQLiteStorage) GetResult(ctx context.Context, id string) (*Result, error) {
	var res Result
	var tableJSON string
	var warningsJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content, table_json, warnings_json, created_at
		 FROM results WHERE id = ?`, id,
	).Scan(&res.ID, &res.Filename, &res.Content, &tableJSON, &warningsJSON, &res.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	res.Table = &models.Table{}
	if err := json.Unmarshal([]byte(tableJSON), res.Table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table: %w", err)
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		_ = json.Unmarshal([]byte(warningsJSON.String), &res.Warnings)
	}
	return &res, nil
}

// DeleteResult removes a result by ID.
func (s *SQLiteStorage) DeleteResult(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// PurgeOlderThan removes results created before cutoff.
func (s *SQLiteStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountResults returns the number of stored results.
func (s *SQLiteStorage) CountResults(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
