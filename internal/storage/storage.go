// Package storage holds generated result files until they are downloaded or expire.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/jikan/internal/models"
)

// ErrNotFound is returned when a result does not exist or has been purged.
var ErrNotFound = errors.New("result not found")

// Result is a stored transform output: the rendered workbook plus the table it was
// rendered from, so other formats can be produced on download.
type Result struct {
	ID        string
	Filename  string
	Content   []byte
	Table     *models.Table
	Warnings  []models.Warning
	CreatedAt time.Time
}

// ResultStore defines transient result persistence.
type ResultStore interface {
	SaveResult(ctx context.Context, res *Result) error
	GetResult(ctx context.Context, id string) (*Result, error)
	DeleteResult(ctx context.Context, id string) error

	// PurgeOlderThan removes results created before cutoff and returns how many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountResults(ctx context.Context) (int64, error)

	Close() error
}
