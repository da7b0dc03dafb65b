package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/modernizer/internal/ladder"
)

// BuildResult is the outcome of one build tool invocation. Output is kept for
// reporting only; callers never parse it.
type BuildResult struct {
	Success  bool
	Output   string
	Duration time.Duration
}

// BuildRunner invokes the build tool in a working copy with the JDK of a rung.
// A non-nil error means the tool could not be run at all; a failed build is
// reported through BuildResult.Success.
type BuildRunner interface {
	// Compile also resolves the build descriptor into the working copy
	Compile(ctx context.Context, dir string, jdk ladder.Rung) (*BuildResult, error)
	Clean(ctx context.Context, dir string, jdk ladder.Rung) (*BuildResult, error)
	Format(ctx context.Context, dir string, jdk ladder.Rung) (*BuildResult, error)
	Verify(ctx context.Context, dir string, jdk ladder.Rung) (*BuildResult, error)
}
