package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/modernizer/internal/models"
)

// ErrNotFound is returned when a stored record does not exist
var ErrNotFound = errors.New("not found")

// MetadataCache persists one merged metadata record per repository plus a
// root record for ungrouped defaults. A missing or unreadable record means
// "not computed yet" and is reported as found=false, never as an error.
type MetadataCache interface {
	// Load returns the cached record for a repository
	Load(ctx context.Context, repository string) (*models.Metadata, bool, error)

	// Store atomically replaces the cached record for a repository
	Store(ctx context.Context, repository string, m *models.Metadata) error

	// Delete removes the cached record, a missing record is not an error
	Delete(ctx context.Context, repository string) error

	// LoadRoot and StoreRoot access the record without a repository segment
	LoadRoot(ctx context.Context) (*models.Metadata, bool, error)
	StoreRoot(ctx context.Context, m *models.Metadata) error

	// Clear removes every cached record
	Clear(ctx context.Context) error
}

// RunStore keeps the per-repository outcome of every run
type RunStore interface {
	SaveResult(ctx context.Context, result *models.Result) error
	GetResult(ctx context.Context, id string) (*models.Result, error)
	ListByRun(ctx context.Context, runID string) ([]*models.Result, error)
	ListByPlugin(ctx context.Context, plugin string) ([]*models.Result, error)
	// ListRecent returns results newest first, at most limit entries
	ListRecent(ctx context.Context, limit int) ([]*models.Result, error)
	DeleteRun(ctx context.Context, runID string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	RunStore() RunStore
	Close() error
}
