// Package extractors derives metadata facts from a plugin working copy. Each
// extractor reads one kind of artifact and returns a partial record; absent or
// malformed artifacts leave the corresponding facts unset.
package extractors

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax/javasrc"
)

// Workspace is a working copy plus the parsers extractors share.
type Workspace struct {
	Dir  string
	Java *javasrc.Parser
}

// Extractor produces a partial metadata record from a workspace.
type Extractor interface {
	Name() string
	// Source decides where the partial record sits in the merge order.
	Source() merge.Source
	Extract(ctx context.Context, ws *Workspace) (*models.Metadata, error)
}

// Defaults returns the built-in extractors, one per merge source.
func Defaults(logger arbor.ILogger) []Extractor {
	return []Extractor{
		NewCommonFileExtractor(logger),
		NewBuildDescriptorExtractor(logger),
		NewSourceImportScanner(logger),
		NewCIScriptExtractor(logger),
	}
}

// skipDirs are never descended into while walking a working copy.
var skipDirs = map[string]bool{
	".git":         true,
	"target":       true,
	"node_modules": true,
	"work":         true,
}

// walkFiles calls fn with the slash-separated relative path of every regular
// file under dir.
func walkFiles(ctx context.Context, dir string, fn func(rel, abs string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), path)
	})
}
