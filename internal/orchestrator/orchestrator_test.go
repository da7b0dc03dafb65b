package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

const legacyPOM = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>org.jenkins-ci.plugins</groupId>
    <artifactId>plugin</artifactId>
    <version>3.57</version>
    <relativePath />
  </parent>
  <artifactId>legacy</artifactId>
  <version>1.0-SNAPSHOT</version>
  <packaging>hpi</packaging>
  <properties>
    <jenkins.version>2.164.3</jenkins.version>
    <java.level>6</java.level>
  </properties>
  <repositories>
    <repository>
      <id>repo.jenkins-ci.org</id>
      <url>https://repo.jenkins-ci.org/public/</url>
    </repository>
  </repositories>
</project>
`

func modernMetadata() *models.Metadata {
	m := models.NewMetadata()
	m.PluginName = "git"
	m.PlatformBaselineVersion = "2.440.3"
	m.Platforms = []models.PlatformConfig{
		{Platform: models.PlatformLinux, JDK: ladder.Java21},
		{Platform: models.PlatformWindows, JDK: ladder.Java17},
	}
	return m
}

type harness struct {
	rec         *recorder
	repos       *fakeRepos
	builds      *fakeBuilds
	transformer *fakeTransformer
	collector   *fakeCollector
	remediator  *fakeRemediator
	cache       *memoryCache
	runs        *memoryRuns
	opts        Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rec := &recorder{}
	return &harness{
		rec:         rec,
		repos:       &fakeRepos{recorder: rec, files: map[string]string{"pom.xml": legacyPOM}},
		builds:      &fakeBuilds{recorder: rec},
		transformer: &fakeTransformer{recorder: rec},
		collector:   &fakeCollector{recorder: rec, results: []collected{{m: modernMetadata()}}},
		remediator:  &fakeRemediator{recorder: rec},
		cache:       newMemoryCache(),
		runs:        &memoryRuns{},
		opts: Options{
			Mode:             ModeRun,
			WorkDir:          t.TempDir(),
			Recipes:          []string{"SetupJenkinsfile"},
			CommitMessage:    "Apply {recipes} to {plugin}",
			PullRequestTitle: "Modernize {plugin}",
		},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Dependencies{
		Repositories: h.repos,
		Builds:       h.builds,
		Transformer:  h.transformer,
		Cache:        h.cache,
		Collector:    h.collector,
		Remediator:   h.remediator,
		Runs:         h.runs,
	}, h.opts, arbor.NewLogger())
	require.NoError(t, err)
	return o
}

func (h *harness) process(t *testing.T, name string) (*models.Plugin, models.Outcome) {
	t.Helper()
	p := models.NewPlugin(name)
	outcome := h.orchestrator(t).Process(context.Background(), "run_test", p)
	return p, outcome
}

func TestProcessPublishes(t *testing.T) {
	h := newHarness(t)
	h.repos.changed = []string{"Jenkinsfile"}

	p, outcome := h.process(t, "git")

	require.Equal(t, models.OutcomeSuccess, outcome, "errors: %v", p.Errors)
	assert.Equal(t, models.StatePublished, p.State)
	assert.Empty(t, p.Errors)
	assert.Empty(t, p.Warnings)
	assert.Equal(t, 17, p.JDK)
	assert.Equal(t, []string{"Jenkinsfile"}, p.ChangedFiles)
	assert.Equal(t, "https://github.com/jenkinsci/git-plugin/pull/1", p.ChangeRequestURL)
	assert.Equal(t, filepath.Join(h.opts.WorkDir, "git-plugin"), p.LocalDir)

	assert.Equal(t, []string{
		"fetch git",
		"remediate",
		"collect",
		"apply git [SetupJenkinsfile]",
		"clean 17",
		"format 17",
		"verify 17",
		"collect",
		"clean 17",
		`commit git plugin-modernizer-tool "Apply SetupJenkinsfile to git"`,
		"fork git",
		"sync git",
		"push git plugin-modernizer-tool",
		`change request git "Modernize git"`,
	}, h.rec.Calls())

	cached, ok, err := h.cache.Load(context.Background(), "git-plugin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []ladder.Rung{ladder.Java17, ladder.Java21}, cached.Versions())
}

func TestProcessSkipsUnmaintained(t *testing.T) {
	tests := []struct {
		name       string
		archived   bool
		deprecated bool
		message    string
	}{
		{name: "archived", archived: true, message: "archived"},
		{name: "deprecated", deprecated: true, message: "deprecated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.repos.archived = map[string]bool{"git": tt.archived}
			h.repos.deprecated = tt.deprecated

			p, outcome := h.process(t, "git")

			assert.Equal(t, models.OutcomeSkipped, outcome)
			assert.Equal(t, models.StateSkippedWithErrors, p.State)
			require.Len(t, p.Errors, 1)
			assert.Contains(t, p.Errors[0].Error(), tt.message)
			assert.Empty(t, h.rec.Calls(), "nothing is fetched")
		})
	}
}

func TestProcessDiagnosticCompile(t *testing.T) {
	cached := models.NewMetadata()
	cached.PlatformBaselineVersion = "2.361.4"
	cached.Platforms = []models.PlatformConfig{
		{Platform: models.PlatformLinux, JDK: ladder.Java11},
		{Platform: models.PlatformLinux, JDK: ladder.Java17},
	}

	t.Run("clean cache compiles at the minimum rung", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.cache.Store(context.Background(), "git-plugin", cached))

		h.process(t, "git")
		assert.Equal(t, []string{"fetch git", "compile 11", "remediate"}, h.rec.Calls()[:3])
	})

	t.Run("cache with open errors does not compile", func(t *testing.T) {
		h := newHarness(t)
		withErrors := cached.Clone()
		withErrors.Errors.Add(models.PreconditionObsoleteLanguageLevel)
		require.NoError(t, h.cache.Store(context.Background(), "git-plugin", withErrors))

		h.process(t, "git")
		assert.Equal(t, []string{"fetch git", "remediate"}, h.rec.Calls()[:2])
	})

	t.Run("forced metadata ignores the cache", func(t *testing.T) {
		h := newHarness(t)
		h.opts.ForceMetadata = true
		require.NoError(t, h.cache.Store(context.Background(), "git-plugin", cached))

		h.process(t, "git")
		assert.False(t, h.rec.Has("compile 11"))
	})
}

func TestProcessRetriesExtractionOnce(t *testing.T) {
	extraction := &models.ExtractionError{Extractor: "build-descriptor", Reason: "descriptor not resolved"}

	t.Run("second attempt succeeds", func(t *testing.T) {
		h := newHarness(t)
		h.collector.results = []collected{{err: extraction}, {m: modernMetadata()}}

		p, outcome := h.process(t, "git")

		require.Equal(t, models.OutcomeSuccess, outcome, "errors: %v", p.Errors)
		// the legacy descriptor declares 2.164.3, which JDK 8 does not build
		assert.Equal(t, []string{"fetch git", "remediate", "collect", "compile 11", "collect"}, h.rec.Calls()[:5])
	})

	t.Run("second failure is fatal", func(t *testing.T) {
		h := newHarness(t)
		h.collector.results = []collected{{err: extraction}}

		p, outcome := h.process(t, "git")

		assert.Equal(t, models.OutcomeFailed, outcome)
		require.Len(t, p.Errors, 1)
		var got *models.ExtractionError
		assert.ErrorAs(t, p.Errors[0], &got)

		collects := 0
		for _, call := range h.rec.Calls() {
			if call == "collect" {
				collects++
			}
		}
		assert.Equal(t, 2, collects)
		assert.False(t, h.rec.Has("apply git [SetupJenkinsfile]"))
	})
}

func TestProcessPreconditions(t *testing.T) {
	open := []models.PreconditionKind{models.PreconditionObsoleteLanguageLevel}

	t.Run("open errors abort", func(t *testing.T) {
		h := newHarness(t)
		h.remediator.open = open
		h.remediator.detected = open

		p, outcome := h.process(t, "git")

		assert.Equal(t, models.OutcomeFailed, outcome)
		require.Len(t, p.Errors, 1)
		var precondition *models.PreconditionError
		require.ErrorAs(t, p.Errors[0], &precondition)
		assert.Equal(t, open, precondition.Kinds)
		assert.Equal(t, []string{"fetch git", "remediate", "collect", "detect"}, h.rec.Calls())

		cached, ok, err := h.cache.Load(context.Background(), "git-plugin")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, cached.Errors.Has(models.PreconditionObsoleteLanguageLevel))
	})

	t.Run("errors gone after collecting again", func(t *testing.T) {
		h := newHarness(t)
		h.remediator.open = open

		_, outcome := h.process(t, "git")
		assert.Equal(t, models.OutcomeSuccess, outcome)
	})
}

func TestProcessFallsBackToBaselineRung(t *testing.T) {
	h := newHarness(t)
	h.opts.Mode = ModeMetadataOnly
	noRungs := models.NewMetadata()
	noRungs.PlatformBaselineVersion = "2.164.3"
	h.collector.results = []collected{{m: noRungs}}

	p, outcome := h.process(t, "legacy")

	require.Equal(t, models.OutcomeMetadataOnly, outcome, "errors: %v", p.Errors)
	assert.Equal(t, []ladder.Rung{ladder.Java11}, p.Metadata.Versions())
	assert.Equal(t, models.StateCompatibilityResolved, p.State)
	assert.Equal(t, []string{
		"fetch legacy",
		"remediate",
		"collect",
		"compile 11",
		"collect",
		"restore legacy",
	}, h.rec.Calls())

	cached, ok, err := h.cache.Load(context.Background(), "legacy-plugin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []ladder.Rung{ladder.Java11}, cached.Versions())
}

func TestProcessTransformationErrors(t *testing.T) {
	tests := []struct {
		name        string
		transformer func(*fakeTransformer)
	}{
		{name: "run failed", transformer: func(f *fakeTransformer) { f.err = errors.New("unknown recipe") }},
		{name: "recipe failed", transformer: func(f *fakeTransformer) {
			f.result = &interfaces.TransformResult{Errors: []error{errors.New("rewrite failed")}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.transformer(h.transformer)

			p, outcome := h.process(t, "git")

			assert.Equal(t, models.OutcomeFailed, outcome)
			require.Len(t, p.Errors, 1)
			var transform *models.TransformationError
			assert.ErrorAs(t, p.Errors[0], &transform)
			assert.False(t, h.rec.Has("verify 17"))
		})
	}
}

func TestProcessVerificationFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	h.builds.verifyFails = true

	p, outcome := h.process(t, "git")

	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.Equal(t, models.StatePublished, p.State)
	assert.Empty(t, p.Errors)
	require.Len(t, p.Warnings, 1)
	var warning *models.VerificationWarning
	require.ErrorAs(t, p.Warnings[0], &warning)
	assert.Equal(t, 17, warning.JDK)
	assert.Contains(t, warning.Output, "Tests failed")
	assert.True(t, h.rec.Has(`change request git "Modernize git"`))
}

func TestVerifyClimbsLadder(t *testing.T) {
	tests := []struct {
		name     string
		baseline string
		versions []ladder.Rung
		target   ladder.Rung
		want     string
	}{
		{name: "declared rung below baseline", baseline: "2.440.3", versions: []ladder.Rung{ladder.Java8}, want: "verify 11"},
		{name: "declared rung below baseline past 11", baseline: "2.479.1", versions: []ladder.Rung{ladder.Java8}, want: "verify 17"},
		{name: "transformation target", baseline: "2.479.1", target: ladder.Java11, want: "verify 17"},
		{name: "declared rung admitted", baseline: "2.361.4", versions: []ladder.Rung{ladder.Java11, ladder.Java17}, want: "verify 11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := models.NewPlugin("git")
			p.LocalDir = t.TempDir()
			p.Metadata.PlatformBaselineVersion = tt.baseline
			for _, r := range tt.versions {
				p.Metadata.Platforms = append(p.Metadata.Platforms, models.PlatformConfig{Platform: models.PlatformLinux, JDK: r})
			}

			h.orchestrator(t).verify(context.Background(), p, tt.target, arbor.NewLogger())

			assert.True(t, h.rec.Has(tt.want), "calls: %v", h.rec.Calls())
			assert.Equal(t, models.StateVerified, p.State)
		})
	}
}

func TestProcessDryRun(t *testing.T) {
	h := newHarness(t)
	h.opts.Mode = ModeDryRun
	h.repos.changed = []string{"Jenkinsfile", "pom.xml"}

	p, outcome := h.process(t, "git")

	assert.Equal(t, models.OutcomeDryRun, outcome)
	assert.Equal(t, []string{"Jenkinsfile", "pom.xml"}, p.ChangedFiles)
	assert.Equal(t, models.StateVerified, p.State)
	for _, call := range h.rec.Calls() {
		assert.False(t, strings.HasPrefix(call, "commit"), call)
		assert.False(t, strings.HasPrefix(call, "push"), call)
	}
}

func TestProcessPublishOptions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*harness)
		present []string
		absent  []string
	}{
		{
			name:    "skip push",
			setup:   func(h *harness) { h.opts.SkipPush = true },
			present: []string{`commit git plugin-modernizer-tool "Apply SetupJenkinsfile to git"`},
			absent:  []string{"fork git", "push git plugin-modernizer-tool"},
		},
		{
			name:    "skip pull request",
			setup:   func(h *harness) { h.opts.SkipPullRequest = true },
			present: []string{"push git plugin-modernizer-tool"},
			absent:  []string{`change request git "Modernize git"`},
		},
		{
			name:   "nothing to commit",
			setup:  func(h *harness) { h.repos.nothingNew = true },
			absent: []string{"fork git", "push git plugin-modernizer-tool"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			p, outcome := h.process(t, "git")

			assert.Equal(t, models.OutcomeSuccess, outcome)
			assert.Equal(t, models.StatePublished, p.State)
			assert.Empty(t, p.ChangeRequestURL)
			for _, call := range tt.present {
				assert.True(t, h.rec.Has(call), call)
			}
			for _, call := range tt.absent {
				assert.False(t, h.rec.Has(call), call)
			}
		})
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.transformer.panics = true

	p, outcome := h.process(t, "git")

	assert.Equal(t, models.OutcomeFailed, outcome)
	assert.Equal(t, models.StateSkippedWithErrors, p.State)
	require.Len(t, p.Errors, 1)

	var unexpected *models.UnexpectedError
	require.ErrorAs(t, p.Errors[0], &unexpected)
	assert.Equal(t, models.StateCompatibilityResolved, unexpected.State)
	var panicked *common.PanicError
	require.ErrorAs(t, p.Errors[0], &panicked)
	assert.Equal(t, "transformer exploded", panicked.Value)
}

func TestProcessCleansLocalData(t *testing.T) {
	h := newHarness(t)
	h.opts.CleanLocalData = true

	p, outcome := h.process(t, "git")

	assert.Equal(t, models.OutcomeSuccess, outcome)
	_, err := os.Stat(p.LocalDir)
	assert.True(t, os.IsNotExist(err))
}

func TestChangeRequestBody(t *testing.T) {
	h := newHarness(t)
	h.opts.Recipes = []string{"SetupJenkinsfile", "Custom"}
	h.opts.Draft = true
	o := h.orchestrator(t)

	p := models.NewPlugin("git")
	p.JDK = 17
	p.ChangedFiles = []string{"Jenkinsfile", "pom.xml"}
	p.AddWarning(&models.VerificationWarning{JDK: 17})

	cr := o.changeRequest(p, arbor.NewLogger())

	assert.Equal(t, "Modernize git", cr.Title)
	assert.Equal(t, "plugin-modernizer-tool", cr.Branch)
	assert.True(t, cr.Draft)
	assert.Contains(t, cr.Body, "- **SetupJenkinsfile**: Add a Jenkinsfile building the plugin.\n")
	assert.Contains(t, cr.Body, "- **Custom**\n")
	assert.Contains(t, cr.Body, "- `Jenkinsfile`\n- `pom.xml`\n")
	assert.Contains(t, cr.Body, "The build failed with JDK 17")
	assert.Contains(t, cr.Body, "Verified with JDK 17.")
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	deps := Dependencies{
		Repositories: h.repos,
		Builds:       h.builds,
		Transformer:  h.transformer,
		Cache:        h.cache,
		Collector:    h.collector,
	}
	_, err := NewOrchestrator(deps, Options{}, arbor.NewLogger())
	assert.ErrorContains(t, err, "remediator")

	deps.Remediator = h.remediator
	o, err := NewOrchestrator(deps, Options{}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, ModeRun, o.opts.Mode)
	assert.Equal(t, 1, o.opts.Concurrency)
	assert.Equal(t, "plugin-modernizer-tool", o.opts.Branch)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := common.NewDefaultConfig()
	assert.Equal(t, ModeRun, OptionsFromConfig(cfg).Mode)

	cfg.Run.DryRun = true
	assert.Equal(t, ModeDryRun, OptionsFromConfig(cfg).Mode)

	cfg.Run.DryRun = false
	cfg.Run.MetadataOnly = true
	cfg.Run.Concurrency = 4
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, ModeMetadataOnly, opts.Mode)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, cfg.Transform.Recipes, opts.Recipes)
	assert.Equal(t, cfg.Run.PullRequestTitle, opts.PullRequestTitle)
}
