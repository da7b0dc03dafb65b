package interfaces

import (
	"context"

	"github.com/ternarybob/modernizer/internal/models"
)

// ChangeRequest describes a change request to open or update.
type ChangeRequest struct {
	Title  string
	Body   string
	Branch string
	Draft  bool
}

// RepositoryService wraps the remote hosting of plugin repositories and the
// local working copies cloned from it.
type RepositoryService interface {
	// Fetch clones or resets the working copy at p.LocalDir to the remote default branch
	Fetch(ctx context.Context, p *models.Plugin) error

	// Restore discards local changes made since the last Fetch
	Restore(ctx context.Context, p *models.Plugin) error

	// Fork creates the fork used to publish changes, if it does not exist
	Fork(ctx context.Context, p *models.Plugin) error

	// Sync brings the fork's default branch up to date with upstream
	Sync(ctx context.Context, p *models.Plugin) error

	// Commit stages every change in the working copy and commits it on branch.
	// It returns false when there was nothing to commit.
	Commit(ctx context.Context, p *models.Plugin, branch, message string) (bool, error)

	// Push pushes branch to the fork
	Push(ctx context.Context, p *models.Plugin, branch string) error

	// OpenChangeRequest opens a change request, or updates the open one for
	// the same branch, and returns its URL
	OpenChangeRequest(ctx context.Context, p *models.Plugin, cr ChangeRequest) (string, error)

	// DeleteFork removes the fork unless it has open change requests.
	// It returns whether the fork was deleted.
	DeleteFork(ctx context.Context, p *models.Plugin) (bool, error)

	IsArchived(ctx context.Context, p *models.Plugin) (bool, error)
	IsDeprecated(ctx context.Context, p *models.Plugin) (bool, error)

	// ChangedFiles lists working copy paths that differ from the fetched state
	ChangedFiles(ctx context.Context, p *models.Plugin) ([]string, error)
}
