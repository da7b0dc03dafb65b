package interfaces

import (
	"context"

	"github.com/ternarybob/modernizer/internal/models"
)

// MetadataCollector extracts a merged metadata record from a working copy.
// finalized, when not nil, is merged last and wins on scalar conflicts.
type MetadataCollector interface {
	Collect(ctx context.Context, dir string, finalized *models.Metadata) (*models.Metadata, error)
}

// PreconditionRemediator runs one detect and remediate pass over the build
// descriptor of a working copy and returns the kinds still open.
type PreconditionRemediator interface {
	RemediateAll(ctx context.Context, dir string) ([]models.PreconditionKind, error)
	DetectDir(dir string) ([]models.PreconditionKind, error)
}
