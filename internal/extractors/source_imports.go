package extractors

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax"
	"github.com/ternarybob/modernizer/internal/syntax/javasrc"
)

// containerTestRoots are the package roots of container-based test frameworks.
var containerTestRoots = []string{
	"org.testcontainers",
	"org.jenkinsci.test.acceptance.docker",
}

// SourceImportScanner flags repositories whose Java sources import a
// container test framework.
type SourceImportScanner struct {
	logger arbor.ILogger
}

// NewSourceImportScanner creates a SourceImportScanner.
func NewSourceImportScanner(logger arbor.ILogger) *SourceImportScanner {
	return &SourceImportScanner{logger: logger}
}

func (e *SourceImportScanner) Name() string         { return "source-imports" }
func (e *SourceImportScanner) Source() merge.Source { return merge.SourceJava }

func (e *SourceImportScanner) Extract(ctx context.Context, ws *Workspace) (*models.Metadata, error) {
	m := models.NewMetadata()

	parser := ws.Java
	if parser == nil {
		parser = javasrc.NewParser()
		defer parser.Close()
	}

	files := 0
	err := walkFiles(ctx, ws.Dir, func(rel, abs string) error {
		if !strings.HasSuffix(rel, ".java") {
			return nil
		}
		files++
		src, err := os.ReadFile(abs)
		if err != nil {
			e.logger.Warn().Err(err).Str("file", rel).Msg("Skipping unreadable source file")
			return nil
		}
		found, err := e.scan(ctx, parser, src)
		if err != nil {
			e.logger.Warn().Err(err).Str("file", rel).Msg("Skipping unparsable source file")
			return nil
		}
		if found {
			e.logger.Debug().Str("file", rel).Msg("Container test import found")
			m.UsesContainerTests = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk sources: %w", err)
	}

	e.logger.Debug().Int("files", files).Bool("container_tests", m.UsesContainerTests).Msg("Source imports scanned")
	return m, nil
}

func (e *SourceImportScanner) scan(ctx context.Context, parser *javasrc.Parser, src []byte) (bool, error) {
	tree, err := parser.Parse(ctx, src)
	if err != nil {
		return false, err
	}
	defer tree.Close()

	return syntax.Fold(tree.Root(), javasrc.KindImport, false, func(acc bool, n syntax.Node) bool {
		return acc || IsContainerTestImport(javasrc.ImportName(n))
	}), nil
}

// IsContainerTestImport reports whether an imported name lies under one of the
// container test framework roots.
func IsContainerTestImport(name string) bool {
	for _, root := range containerTestRoots {
		if name == root || strings.HasPrefix(name, root+".") {
			return true
		}
	}
	return false
}
