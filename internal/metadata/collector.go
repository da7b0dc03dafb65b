package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/modernizer/internal/extractors"
	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax/javasrc"
)

// Collector runs the extractors over a working copy and merges their partial
// records in precedence order.
type Collector struct {
	extractors []extractors.Extractor
	java       *javasrc.Parser
	logger     arbor.ILogger
}

// NewCollector creates a collector. With no extractors the defaults are used.
func NewCollector(logger arbor.ILogger, exs ...extractors.Extractor) *Collector {
	if len(exs) == 0 {
		exs = extractors.Defaults(logger)
	}
	return &Collector{
		extractors: exs,
		java:       javasrc.NewParser(),
		logger:     logger,
	}
}

// Close releases the shared parsers.
func (c *Collector) Close() { c.java.Close() }

// Collect extracts metadata from dir. Extractors run concurrently, each into
// its own record; finalized, when given, is merged last. The first extractor
// error is returned as is, so an ExtractionError stays detectable.
func (c *Collector) Collect(ctx context.Context, dir string, finalized *models.Metadata) (*models.Metadata, error) {
	start := time.Now()
	ws := &extractors.Workspace{Dir: dir, Java: c.java}

	var (
		mu    sync.Mutex
		parts = make(map[merge.Source]*models.Metadata, len(c.extractors)+1)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ex := range c.extractors {
		g.Go(func() error {
			m, err := ex.Extract(gctx, ws)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if existing, ok := parts[ex.Source()]; ok {
				if m, err = merge.Merge(existing, m); err != nil {
					return fmt.Errorf("merge %s: %w", ex.Name(), err)
				}
			}
			parts[ex.Source()] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if finalized != nil {
		parts[merge.SourceFinalized] = finalized
	}

	out, err := merge.MergeOrdered(parts)
	if err != nil {
		return nil, fmt.Errorf("merge metadata: %w", err)
	}
	c.logger.Debug().
		Str("dir", dir).
		Int("platforms", len(out.Platforms)).
		Str("baseline", out.PlatformBaselineVersion).
		Str("duration", time.Since(start).String()).
		Msg("Metadata collected")
	return out, nil
}
