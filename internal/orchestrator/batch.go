package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/models"
)

// Run processes every named plugin and returns the per-repository summary.
// Repositories are isolated from each other: a failed repository never stops
// the batch. The returned error is the context error, if any.
func (o *Orchestrator) Run(ctx context.Context, names []string) (*Summary, error) {
	runID := common.NewRunID()
	common.SetRunContext(runID, string(o.opts.Mode))
	summary := &Summary{
		RunID:     runID,
		Mode:      o.opts.Mode,
		StartedAt: time.Now(),
		Results:   make([]*models.Result, len(names)),
	}

	o.logger.Info().
		Str("run_id", runID).
		Str("mode", string(o.opts.Mode)).
		Int("plugins", len(names)).
		Int("concurrency", o.opts.Concurrency).
		Msg("Starting batch")

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			p := models.NewPlugin(name)
			outcome := o.Process(ctx, runID, p)
			result := models.NewResult(runID, p, outcome)
			summary.Results[i] = result
			o.save(ctx, result)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = time.Now()
	o.logger.Info().
		Str("run_id", runID).
		Int("succeeded", summary.Count(models.OutcomeSuccess)+summary.Count(models.OutcomeDryRun)+summary.Count(models.OutcomeMetadataOnly)).
		Int("skipped", summary.Count(models.OutcomeSkipped)).
		Int("failed", summary.Count(models.OutcomeFailed)).
		Str("duration", summary.FinishedAt.Sub(summary.StartedAt).String()).
		Msg("Batch finished")
	return summary, ctx.Err()
}

func (o *Orchestrator) save(ctx context.Context, result *models.Result) {
	if o.runs == nil {
		return
	}
	if err := o.runs.SaveResult(context.WithoutCancel(ctx), result); err != nil {
		o.logger.Warn().Err(err).Str("id", result.ID).Msg("Failed to save result")
	}
}

// CleanupResult reports what Cleanup did for one plugin.
type CleanupResult struct {
	Plugin      string
	ForkDeleted bool
	Err         error
}

// Cleanup deletes the forks of the named plugins that have no open change
// requests, and removes their cached metadata and working copies.
func (o *Orchestrator) Cleanup(ctx context.Context, names []string) []CleanupResult {
	results := make([]CleanupResult, 0, len(names))
	for _, name := range names {
		p := models.NewPlugin(name)
		res := CleanupResult{Plugin: p.Name}

		deleted, err := o.repos.DeleteFork(ctx, p)
		if err != nil {
			res.Err = fmt.Errorf("delete fork: %w", err)
		}
		res.ForkDeleted = deleted

		if err := o.cache.Delete(ctx, p.Repository); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("delete cached metadata: %w", err)
		}
		if err := os.RemoveAll(filepath.Join(o.opts.WorkDir, p.Repository)); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("remove working copy: %w", err)
		}

		o.logger.Info().
			Str("plugin", p.Name).
			Bool("fork_deleted", res.ForkDeleted).
			Err(res.Err).
			Msg("Plugin cleaned up")
		results = append(results, res)
	}
	return results
}

// ClearCache removes every cached metadata record.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	return o.cache.Clear(ctx)
}
