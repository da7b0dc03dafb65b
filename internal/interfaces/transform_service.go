package interfaces

import (
	"context"

	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

// Recipe is one named transformation from the catalog.
type Recipe struct {
	Name        string      `yaml:"name" validate:"required"`
	Description string      `yaml:"description" validate:"required"`
	Tags        []string    `yaml:"tags,omitempty"`
	TargetJDK   ladder.Rung `yaml:"target_jdk,omitempty" validate:"omitempty,oneof=8 11 17 21"`
	// Command runs in the working copy; empty for built-in recipes
	Command []string `yaml:"command,omitempty" validate:"omitempty,dive,required"`
}

// TransformResult reports what a transformation run did.
type TransformResult struct {
	ChangedFiles []string
	// TargetJDK is the rung the applied recipes target, None when unspecified
	TargetJDK ladder.Rung
	Errors    []error
}

// Transformer applies recipes to a working copy. Errors reported in the result
// come from individual recipes; a returned error means the run itself failed.
type Transformer interface {
	Apply(ctx context.Context, p *models.Plugin, recipes []string) (*TransformResult, error)
	Recipes() []Recipe
	Recipe(name string) (Recipe, bool)
}
