// Package orchestrator drives plugin repositories through the modernization
// state machine, one working copy per repository.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/extractors"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

// Mode selects how far a run takes each repository.
type Mode string

const (
	// ModeRun transforms, verifies and publishes
	ModeRun Mode = common.RunModeRun
	// ModeDryRun stops after verification and reports the changed files
	ModeDryRun Mode = common.RunModeDryRun
	// ModeMetadataOnly collects and caches metadata, then restores the working copy
	ModeMetadataOnly Mode = common.RunModeMetadataOnly
)

// verificationOutputLines is how much build output a verification warning keeps.
const verificationOutputLines = 40

// errSkipped marks repositories that are not processed at all.
var errSkipped = errors.New("skipped")

// Options configures a batch run.
type Options struct {
	Mode        Mode
	WorkDir     string
	Branch      string
	Recipes     []string
	Concurrency int

	ForceMetadata   bool
	SkipPush        bool
	SkipPullRequest bool
	Draft           bool
	CleanLocalData  bool

	CommitMessage    string
	PullRequestTitle string
}

// OptionsFromConfig derives run options from the configuration.
func OptionsFromConfig(cfg *common.Config) Options {
	return Options{
		Mode:             Mode(cfg.RunMode()),
		WorkDir:          cfg.Run.WorkDir,
		Branch:           cfg.Run.Branch,
		Recipes:          cfg.Transform.Recipes,
		Concurrency:      cfg.Run.Concurrency,
		ForceMetadata:    cfg.Run.ForceMetadata,
		SkipPush:         cfg.Run.SkipPush,
		SkipPullRequest:  cfg.Run.SkipPullRequest,
		Draft:            cfg.Run.Draft,
		CleanLocalData:   cfg.Run.CleanLocalData,
		CommitMessage:    cfg.Run.CommitMessage,
		PullRequestTitle: cfg.Run.PullRequestTitle,
	}
}

// Dependencies are the collaborators of the orchestrator. Runs may be nil.
type Dependencies struct {
	Repositories interfaces.RepositoryService
	Builds       interfaces.BuildRunner
	Transformer  interfaces.Transformer
	Cache        interfaces.MetadataCache
	Collector    interfaces.MetadataCollector
	Remediator   interfaces.PreconditionRemediator
	Runs         interfaces.RunStore
}

// Orchestrator coordinates the per-repository state machine and the batch
// driver on top of it.
type Orchestrator struct {
	repos       interfaces.RepositoryService
	builds      interfaces.BuildRunner
	transformer interfaces.Transformer
	cache       interfaces.MetadataCache
	collector   interfaces.MetadataCollector
	remediator  interfaces.PreconditionRemediator
	runs        interfaces.RunStore
	opts        Options
	logger      arbor.ILogger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(deps Dependencies, opts Options, logger arbor.ILogger) (*Orchestrator, error) {
	switch {
	case deps.Repositories == nil:
		return nil, fmt.Errorf("repository service is required")
	case deps.Builds == nil:
		return nil, fmt.Errorf("build runner is required")
	case deps.Transformer == nil:
		return nil, fmt.Errorf("transformer is required")
	case deps.Cache == nil:
		return nil, fmt.Errorf("metadata cache is required")
	case deps.Collector == nil:
		return nil, fmt.Errorf("metadata collector is required")
	case deps.Remediator == nil:
		return nil, fmt.Errorf("precondition remediator is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeRun
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Branch == "" {
		opts.Branch = "plugin-modernizer-tool"
	}

	return &Orchestrator{
		repos:       deps.Repositories,
		builds:      deps.Builds,
		transformer: deps.Transformer,
		cache:       deps.Cache,
		collector:   deps.Collector,
		remediator:  deps.Remediator,
		runs:        deps.Runs,
		opts:        opts,
		logger:      logger,
	}, nil
}

// Process runs one plugin through the state machine. Failures, panics
// included, are recorded on p and reflected in the returned outcome.
func (o *Orchestrator) Process(ctx context.Context, runID string, p *models.Plugin) models.Outcome {
	logger := o.logger.WithCorrelationId(runID + "/" + p.Name)
	defer common.TrackPlugin(p.Name)()
	p.StartedAt = time.Now()
	if p.LocalDir == "" {
		p.LocalDir = filepath.Join(o.opts.WorkDir, p.Repository)
	}
	p.State = models.StateValidated

	logger.Info().
		Str("plugin", p.Name).
		Str("mode", string(o.opts.Mode)).
		Msg("Processing plugin")

	err := common.CapturePanic(func() error {
		return o.process(ctx, p, logger)
	})
	outcome := o.conclude(p, err, logger)
	p.FinishedAt = time.Now()

	if o.opts.CleanLocalData {
		if err := os.RemoveAll(p.LocalDir); err != nil {
			logger.Warn().Err(err).Str("dir", p.LocalDir).Msg("Failed to remove working copy")
		}
	}

	logger.Info().
		Str("plugin", p.Name).
		Str("outcome", string(outcome)).
		Str("state", string(p.State)).
		Int("warnings", len(p.Warnings)).
		Int("errors", len(p.Errors)).
		Str("duration", p.FinishedAt.Sub(p.StartedAt).String()).
		Msg("Plugin processed")
	return outcome
}

// conclude records err on p and maps it to an outcome.
func (o *Orchestrator) conclude(p *models.Plugin, err error, logger arbor.ILogger) models.Outcome {
	if err == nil {
		switch o.opts.Mode {
		case ModeDryRun:
			return models.OutcomeDryRun
		case ModeMetadataOnly:
			return models.OutcomeMetadataOnly
		}
		return models.OutcomeSuccess
	}

	if errors.Is(err, errSkipped) {
		logger.Warn().Str("plugin", p.Name).Msg(err.Error())
		p.AddError(err)
		p.State = models.StateSkippedWithErrors
		return models.OutcomeSkipped
	}

	var (
		precondition *models.PreconditionError
		extraction   *models.ExtractionError
		transform    *models.TransformationError
		panicked     *common.PanicError
	)
	switch {
	case errors.As(err, &precondition), errors.As(err, &extraction), errors.As(err, &transform):
		p.AddError(err)
	case errors.As(err, &panicked):
		logger.Error().Str("panic", fmt.Sprintf("%v", panicked.Value)).Str("stack", panicked.Stack).Msg("Recovered from panic")
		p.AddError(&models.UnexpectedError{State: p.State, Err: err})
	default:
		p.AddError(&models.UnexpectedError{State: p.State, Err: err})
	}
	logger.Error().Err(err).Str("plugin", p.Name).Str("state", string(p.State)).Msg("Plugin skipped with errors")
	p.State = models.StateSkippedWithErrors
	return models.OutcomeFailed
}

func (o *Orchestrator) process(ctx context.Context, p *models.Plugin, logger arbor.ILogger) error {
	if err := o.fetch(ctx, p, logger); err != nil {
		return err
	}

	cached, err := o.loadCached(ctx, p)
	if err != nil {
		return err
	}
	var finalized *models.Metadata
	if cached != nil {
		if !cached.HasErrors() {
			logger.Debug().Msg("Cached metadata found, running diagnostic compile")
			o.compile(ctx, p, ladder.MinimumRung(cached.Versions(), cached.PlatformBaselineVersion), logger)
		}
		finalized = cached.Clone()
		finalized.ClearErrors()
	}

	if err := o.precheck(ctx, p, logger); err != nil {
		return err
	}

	m, err := o.collect(ctx, p, finalized, logger)
	if err != nil {
		return err
	}
	p.Metadata = m
	p.MarkMetadataCollected()
	p.State = models.StateMetadataCollected
	if err := o.store(ctx, p); err != nil {
		return err
	}

	if err := o.resolveCompatibility(ctx, p, logger); err != nil {
		return err
	}

	if o.opts.Mode == ModeMetadataOnly {
		if err := o.repos.Restore(ctx, p); err != nil {
			return fmt.Errorf("restore working copy: %w", err)
		}
		return nil
	}

	result, err := o.transform(ctx, p, logger)
	if err != nil {
		return err
	}

	o.verify(ctx, p, result.TargetJDK, logger)

	files, err := o.repos.ChangedFiles(ctx, p)
	if err != nil {
		return fmt.Errorf("list changed files: %w", err)
	}
	p.ChangedFiles = files

	if o.opts.Mode == ModeDryRun {
		logger.Info().
			Str("plugin", p.Name).
			Strs("changed_files", files).
			Msg("Dry run, changes not published")
		return nil
	}
	return o.publish(ctx, p, logger)
}

// fetch skips archived and deprecated repositories, then clones or resets the
// working copy.
func (o *Orchestrator) fetch(ctx context.Context, p *models.Plugin, logger arbor.ILogger) error {
	archived, err := o.repos.IsArchived(ctx, p)
	if err != nil {
		return err
	}
	if archived {
		return fmt.Errorf("%w: repository %s is archived", errSkipped, p.Repository)
	}
	deprecated, err := o.repos.IsDeprecated(ctx, p)
	if err != nil {
		return err
	}
	if deprecated {
		return fmt.Errorf("%w: plugin %s is deprecated", errSkipped, p.Name)
	}

	if err := o.repos.Fetch(ctx, p); err != nil {
		return fmt.Errorf("fetch %s: %w", p.Repository, err)
	}
	p.State = models.StateFetched
	logger.Debug().Str("dir", p.LocalDir).Msg("Working copy ready")
	return nil
}

func (o *Orchestrator) loadCached(ctx context.Context, p *models.Plugin) (*models.Metadata, error) {
	if o.opts.ForceMetadata {
		if err := o.cache.Delete(ctx, p.Repository); err != nil {
			return nil, fmt.Errorf("discard cached metadata: %w", err)
		}
		return nil, nil
	}
	m, ok, err := o.cache.Load(ctx, p.Repository)
	if err != nil {
		return nil, fmt.Errorf("load cached metadata: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return m, nil
}

// precheck runs one remediation pass. When kinds remain open the metadata is
// collected again from the rewritten descriptor and detection re-runs before
// the repository is given up.
func (o *Orchestrator) precheck(ctx context.Context, p *models.Plugin, logger arbor.ILogger) error {
	open, err := o.remediator.RemediateAll(ctx, p.LocalDir)
	if err != nil {
		return fmt.Errorf("precondition check: %w", err)
	}
	p.State = models.StatePrecheckedOrRemediated
	if len(open) == 0 {
		return nil
	}

	logger.Warn().Strs("open", kindNames(open)).Msg("Preconditions remain after remediation")
	if m, err := o.collector.Collect(ctx, p.LocalDir, nil); err == nil {
		p.Metadata = m
	} else {
		logger.Debug().Err(err).Msg("Metadata unavailable for unremediated repository")
	}

	open, err = o.remediator.DetectDir(p.LocalDir)
	if err != nil {
		return fmt.Errorf("precondition check: %w", err)
	}
	if len(open) == 0 {
		return nil
	}
	p.Metadata.Errors = models.NewSet(open...)
	if err := o.store(ctx, p); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache metadata")
	}
	return &models.PreconditionError{Kinds: open}
}

// collect extracts metadata. An extraction error is retried exactly once
// after a compile has resolved the descriptor.
func (o *Orchestrator) collect(ctx context.Context, p *models.Plugin, finalized *models.Metadata, logger arbor.ILogger) (*models.Metadata, error) {
	m, err := o.collector.Collect(ctx, p.LocalDir, finalized)
	var extraction *models.ExtractionError
	if errors.As(err, &extraction) {
		rung := o.retryRung(p, finalized)
		logger.Warn().Err(err).Int("jdk", int(rung)).Msg("Metadata extraction failed, compiling before retry")
		p.ClearErrors()
		o.compile(ctx, p, rung, logger)
		m, err = o.collector.Collect(ctx, p.LocalDir, finalized)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// retryRung picks the JDK for the compile before an extraction retry: the
// verified rung once there is one, else the lowest rung the known baseline
// admits. The raw descriptor supplies the baseline when no metadata has it.
func (o *Orchestrator) retryRung(p *models.Plugin, finalized *models.Metadata) ladder.Rung {
	if p.JDK != 0 {
		return ladder.Rung(p.JDK)
	}
	m := p.Metadata
	if finalized != nil {
		m = finalized
	}
	var (
		versions []ladder.Rung
		baseline string
	)
	if m != nil {
		versions = m.Versions()
		baseline = m.PlatformBaselineVersion
	}
	if baseline == "" {
		if raw, err := extractors.ReadDescriptor(p.LocalDir); err == nil {
			baseline = extractors.RawBaseline(raw)
		}
	}
	return ladder.MinimumRung(versions, baseline)
}

// resolveCompatibility handles repositories whose CI configuration names no
// rung: the minimum rung of the raw descriptor baseline becomes the sole rung.
func (o *Orchestrator) resolveCompatibility(ctx context.Context, p *models.Plugin, logger arbor.ILogger) error {
	if !p.Metadata.OnlyImplicitRungs() {
		p.State = models.StateCompatibilityResolved
		return nil
	}

	raw, err := extractors.ReadDescriptor(p.LocalDir)
	if err != nil {
		return err
	}
	baseline := extractors.RawBaseline(raw)
	rung := ladder.MinimumRung(nil, baseline)
	logger.Info().
		Str("baseline", baseline).
		Int("jdk", int(rung)).
		Msg("No CI rungs declared, using minimum rung of the baseline")

	pinRung(p.Metadata, rung)
	if err := o.store(ctx, p); err != nil {
		return err
	}

	if rung <= ladder.Get(1) {
		o.compile(ctx, p, rung, logger)
		m, err := o.collector.Collect(ctx, p.LocalDir, p.Metadata)
		if err != nil {
			return err
		}
		pinRung(m, rung)
		p.Metadata = m
		if err := o.store(ctx, p); err != nil {
			return err
		}
	}
	p.State = models.StateCompatibilityResolved
	return nil
}

func (o *Orchestrator) transform(ctx context.Context, p *models.Plugin, logger arbor.ILogger) (*interfaces.TransformResult, error) {
	result, err := o.transformer.Apply(ctx, p, o.opts.Recipes)
	if err != nil {
		return nil, &models.TransformationError{Recipes: o.opts.Recipes, Err: err}
	}
	if len(result.Errors) > 0 {
		return nil, &models.TransformationError{Recipes: o.opts.Recipes, Err: errors.Join(result.Errors...)}
	}
	p.ChangedFiles = result.ChangedFiles
	p.State = models.StateTransformed
	logger.Info().
		Strs("recipes", o.opts.Recipes).
		Int("changed_files", len(result.ChangedFiles)).
		Msg("Recipes applied")
	return result, nil
}

// verify builds at the lowest rung the baseline admits. A failed verification
// clears the recorded errors and leaves a warning.
func (o *Orchestrator) verify(ctx context.Context, p *models.Plugin, target ladder.Rung, logger arbor.ILogger) {
	baseline := p.Metadata.PlatformBaselineVersion
	versions := p.Metadata.Versions()
	rung := ladder.MinimumRung(versions, baseline)
	if len(versions) == 0 && target != ladder.None {
		rung = target
	}
	for ladder.HasNext(rung) && !ladder.Admits(baseline, rung) {
		rung = ladder.Next(rung)
	}
	p.JDK = int(rung)

	o.step(ctx, "clean", o.builds.Clean, p, rung, logger)
	o.step(ctx, "format", o.builds.Format, p, rung, logger)

	result, err := o.builds.Verify(ctx, p.LocalDir, rung)
	p.State = models.StateVerified
	if err == nil && result.Success {
		logger.Info().Int("jdk", int(rung)).Str("duration", result.Duration.String()).Msg("Verification succeeded")
		return
	}

	output := ""
	if err != nil {
		output = err.Error()
	} else {
		output = lastLines(result.Output, verificationOutputLines)
	}
	p.ClearErrors()
	p.AddWarning(&models.VerificationWarning{JDK: int(rung), Output: output})
	logger.Warn().Int("jdk", int(rung)).Msg("Verification failed, continuing")
}

// publish re-collects metadata, cleans the working copy, commits and pushes
// the branch and opens or updates the change request.
func (o *Orchestrator) publish(ctx context.Context, p *models.Plugin, logger arbor.ILogger) error {
	m, err := o.collect(ctx, p, nil, logger)
	if err != nil {
		return err
	}
	if m.OnlyImplicitRungs() && !p.Metadata.OnlyImplicitRungs() {
		pinRung(m, ladder.Sorted(p.Metadata.Versions())[0])
	}
	p.Metadata = m
	if err := o.store(ctx, p); err != nil {
		return err
	}

	o.step(ctx, "clean", o.builds.Clean, p, ladder.Rung(p.JDK), logger)

	message := o.expand(o.opts.CommitMessage, p, logger)
	committed, err := o.repos.Commit(ctx, p, o.opts.Branch, message)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if !committed {
		logger.Info().Msg("Nothing to commit")
		p.State = models.StatePublished
		return nil
	}
	if o.opts.SkipPush {
		logger.Info().Str("branch", o.opts.Branch).Msg("Push skipped")
		p.State = models.StatePublished
		return nil
	}

	if err := o.repos.Fork(ctx, p); err != nil {
		return fmt.Errorf("fork: %w", err)
	}
	if err := o.repos.Sync(ctx, p); err != nil {
		return fmt.Errorf("sync fork: %w", err)
	}
	if err := o.repos.Push(ctx, p, o.opts.Branch); err != nil {
		return fmt.Errorf("push: %w", err)
	}

	if o.opts.SkipPullRequest {
		logger.Info().Msg("Change request skipped")
		p.State = models.StatePublished
		return nil
	}
	url, err := o.repos.OpenChangeRequest(ctx, p, o.changeRequest(p, logger))
	if err != nil {
		return fmt.Errorf("open change request: %w", err)
	}
	p.ChangeRequestURL = url
	p.State = models.StatePublished
	return nil
}

type buildStep func(ctx context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error)

// step runs a build whose failure is logged and otherwise ignored.
func (o *Orchestrator) step(ctx context.Context, name string, run buildStep, p *models.Plugin, rung ladder.Rung, logger arbor.ILogger) {
	result, err := run(ctx, p.LocalDir, rung)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("step", name).Int("jdk", int(rung)).Msg("Build could not run")
	case !result.Success:
		logger.Warn().Str("step", name).Int("jdk", int(rung)).Str("duration", result.Duration.String()).Msg("Build failed")
	default:
		logger.Debug().Str("step", name).Int("jdk", int(rung)).Str("duration", result.Duration.String()).Msg("Build succeeded")
	}
}

// compile resolves the descriptor. p.JDK is left to verification.
func (o *Orchestrator) compile(ctx context.Context, p *models.Plugin, rung ladder.Rung, logger arbor.ILogger) {
	o.step(ctx, "compile", o.builds.Compile, p, rung, logger)
}

func (o *Orchestrator) store(ctx context.Context, p *models.Plugin) error {
	if err := o.cache.Store(ctx, p.Repository, p.Metadata); err != nil {
		return fmt.Errorf("cache metadata: %w", err)
	}
	return nil
}

// pinRung replaces the platform entries of m with one entry per platform at rung.
func pinRung(m *models.Metadata, rung ladder.Rung) {
	names := m.PlatformNames()
	if len(names) == 0 {
		names = []models.Platform{models.PlatformLinux}
	}
	platforms := make([]models.PlatformConfig, 0, len(names))
	for _, name := range names {
		platforms = append(platforms, models.PlatformConfig{Platform: name, JDK: rung})
	}
	m.Platforms = platforms
}

func kindNames(kinds []models.PreconditionKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
