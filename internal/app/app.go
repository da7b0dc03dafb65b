package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/build"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/connectors/github"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/metadata"
	"github.com/ternarybob/modernizer/internal/orchestrator"
	"github.com/ternarybob/modernizer/internal/preconditions"
	"github.com/ternarybob/modernizer/internal/storage"
	"github.com/ternarybob/modernizer/internal/transform"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager interfaces.StorageManager
	Cache          *metadata.FileCache

	// Services
	Collector   *metadata.Collector
	Remediator  *preconditions.Remediator
	Builds      *build.MavenRunner
	Catalog     *transform.Catalog
	Transformer *transform.Executor

	// Connector and Orchestrator stay nil without a GitHub token
	Connector    *github.Connector
	Orchestrator *orchestrator.Orchestrator
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initOrchestrator(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	logger.Debug().
		Bool("orchestrator", app.Orchestrator != nil).
		Int("recipes", len(app.Catalog.All())).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the run history and the metadata cache
func (a *App) initStorage() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Run history initialized")

	cache, err := metadata.NewFileCache(a.Config.Cache.Dir, a.Config.Cache.MemoryEntries, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create metadata cache: %w", err)
	}
	a.Cache = cache
	a.Logger.Debug().Str("dir", cache.Root()).Msg("Metadata cache initialized")

	return nil
}

// initServices creates the services that need no remote access
func (a *App) initServices() error {
	a.Collector = metadata.NewCollector(a.Logger)
	a.Remediator = preconditions.NewRemediator(a.Logger)

	javaHomes, err := build.ParseJavaHomes(a.Config.Build.JavaHomes)
	if err != nil {
		return fmt.Errorf("invalid build.java_homes: %w", err)
	}
	buildTimeout, err := a.Config.Build.TimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid build.timeout: %w", err)
	}
	a.Builds = build.NewMavenRunner(build.Options{
		Executable: a.Config.Build.MavenExecutable,
		JavaHomes:  javaHomes,
		Timeout:    buildTimeout,
		Offline:    a.Config.Build.Offline,
		ExtraArgs:  a.Config.Build.ExtraArgs,
	}, a.Logger)

	a.Catalog, err = transform.LoadCatalog(a.Config.Transform.CatalogFile)
	if err != nil {
		return err
	}
	for _, name := range a.Config.Transform.Recipes {
		if _, ok := a.Catalog.Get(name); !ok {
			return fmt.Errorf("unknown recipe %q (see the recipes command)", name)
		}
	}

	return nil
}

// initOrchestrator wires the GitHub connector into the transformer and the
// orchestrator. Both are skipped when no token is configured.
func (a *App) initOrchestrator() error {
	transformTimeout, err := a.Config.Transform.TimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid transform.timeout: %w", err)
	}
	transformOpts := transform.Options{
		MavenExecutable: a.Config.Build.MavenExecutable,
		Timeout:         transformTimeout,
	}

	if a.Config.GitHub.Token == "" {
		a.Transformer = transform.NewExecutor(a.Catalog, nil, transformOpts, a.Logger)
		a.Logger.Debug().Msg("No GitHub token configured, orchestrator disabled")
		return nil
	}

	var opts []github.Option
	if a.Config.GitHub.APIURL != "" {
		opts = append(opts, github.WithBaseURL(a.Config.GitHub.APIURL))
	}
	a.Connector, err = github.NewConnector(github.Config{
		Token:             a.Config.GitHub.Token,
		SourceOrg:         a.Config.GitHub.SourceOrg,
		ForkOrg:           a.Config.GitHub.ForkOrg,
		GitURL:            a.Config.GitHub.GitURL,
		GitPath:           a.Config.GitHub.GitPath,
		CommitName:        a.Config.GitHub.CommitName,
		CommitEmail:       a.Config.GitHub.CommitEmail,
		RequestsPerSecond: a.Config.GitHub.RequestsPerSecond,
	}, a.Logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create github connector: %w", err)
	}

	a.Transformer = transform.NewExecutor(a.Catalog, a.Connector, transformOpts, a.Logger)

	a.Orchestrator, err = orchestrator.NewOrchestrator(orchestrator.Dependencies{
		Repositories: a.Connector,
		Builds:       a.Builds,
		Transformer:  a.Transformer,
		Cache:        a.Cache,
		Collector:    a.Collector,
		Remediator:   a.Remediator,
		Runs:         a.StorageManager.RunStore(),
	}, orchestrator.OptionsFromConfig(a.Config), a.Logger)
	return err
}

// RequireOrchestrator reports why the orchestrator is unavailable
func (a *App) RequireOrchestrator() error {
	if a.Orchestrator == nil {
		return a.Config.RequireToken()
	}
	return nil
}

// Close releases the parser and the storage
func (a *App) Close() error {
	if a.Collector != nil {
		a.Collector.Close()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}

	return nil
}
