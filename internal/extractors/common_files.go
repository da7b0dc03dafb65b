package extractors

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
)

// CommonFileExtractor records which catalog files the working copy contains.
type CommonFileExtractor struct {
	logger arbor.ILogger
}

// NewCommonFileExtractor creates a CommonFileExtractor.
func NewCommonFileExtractor(logger arbor.ILogger) *CommonFileExtractor {
	return &CommonFileExtractor{logger: logger}
}

func (e *CommonFileExtractor) Name() string         { return "common-files" }
func (e *CommonFileExtractor) Source() merge.Source { return merge.SourceCommonFiles }

func (e *CommonFileExtractor) Extract(ctx context.Context, ws *Workspace) (*models.Metadata, error) {
	m := models.NewMetadata()
	err := walkFiles(ctx, ws.Dir, func(rel, _ string) error {
		kind, ok := models.ResolveCommonFile(rel)
		if !ok {
			return nil
		}
		if !m.CommonFiles.Add(kind) {
			e.logger.Debug().Str("kind", string(kind)).Str("path", rel).Msg("Common file already recorded")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk working copy: %w", err)
	}
	e.logger.Debug().Int("count", len(m.CommonFiles)).Msg("Common files collected")
	return m, nil
}
