package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ternarybob/modernizer/internal/models"
)

func TestRunBatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t)
	h.opts.Concurrency = 3
	h.repos.archived = map[string]bool{"mailer": true}
	names := []string{"git", "mailer", "credentials", "matrix-auth", "workflow-cps"}

	summary, err := h.orchestrator(t).Run(context.Background(), names)
	require.NoError(t, err)

	require.Len(t, summary.Results, len(names))
	for i, result := range summary.Results {
		require.NotNil(t, result)
		assert.Equal(t, names[i], result.Plugin, "results keep input order")
		assert.Equal(t, summary.RunID, result.RunID)
		assert.Equal(t, summary.RunID+"/"+names[i], result.ID)
	}
	assert.Equal(t, 4, summary.Count(models.OutcomeSuccess))
	assert.Equal(t, 1, summary.Count(models.OutcomeSkipped))
	assert.Equal(t, models.OutcomeSkipped, summary.Results[1].Outcome)
	assert.True(t, summary.Failed())
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	assert.Len(t, h.runs.Saved(), len(names))
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t)
	h.transformer.panics = true

	summary, err := h.orchestrator(t).Run(context.Background(), []string{"git", "mailer"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count(models.OutcomeFailed))
	for _, result := range summary.Results {
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "transformer exploded")
	}
}

func TestRunBatchReportsCancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.orchestrator(t).Run(ctx, []string{"git"})
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, summary)
	assert.Len(t, summary.Results, 1)
}

func TestCleanup(t *testing.T) {
	h := newHarness(t)
	h.repos.openPRs = map[string]bool{"mailer": true}
	ctx := context.Background()

	for _, repo := range []string{"git-plugin", "mailer-plugin"} {
		require.NoError(t, h.cache.Store(ctx, repo, models.NewMetadata()))
		require.NoError(t, os.MkdirAll(filepath.Join(h.opts.WorkDir, repo), 0o755))
	}

	results := h.orchestrator(t).Cleanup(ctx, []string{"git", "mailer-plugin"})

	require.Len(t, results, 2)
	assert.Equal(t, CleanupResult{Plugin: "git", ForkDeleted: true}, results[0])
	assert.Equal(t, CleanupResult{Plugin: "mailer", ForkDeleted: false}, results[1])
	for _, repo := range []string{"git-plugin", "mailer-plugin"} {
		_, ok, err := h.cache.Load(ctx, repo)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = os.Stat(filepath.Join(h.opts.WorkDir, repo))
		assert.True(t, os.IsNotExist(err))
	}

	h.repos.deleteErr = errors.New("forbidden")
	results = h.orchestrator(t).Cleanup(ctx, []string{"git"})
	assert.ErrorContains(t, results[0].Err, "forbidden")
}

func TestSummaryPrint(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	summary := &Summary{
		RunID:      "run_1",
		Mode:       ModeDryRun,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Results: []*models.Result{
			{Plugin: "git", Outcome: models.OutcomeDryRun, State: models.StateVerified, JDK: 17, ChangedFiles: []string{"Jenkinsfile"}},
			{Plugin: "mailer", Outcome: models.OutcomeFailed, State: models.StateSkippedWithErrors, Errors: []string{"boom"}},
			nil,
		},
	}

	var out bytes.Buffer
	summary.Print(&out)

	assert.Contains(t, out.String(), "Run run_1 (dry_run) finished in 1m30s")
	assert.Contains(t, out.String(), "jdk=17")
	assert.Contains(t, out.String(), "changed files:  Jenkinsfile")
	assert.Contains(t, out.String(), "error:   boom")
}
