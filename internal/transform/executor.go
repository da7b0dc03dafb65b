package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

// builtinFunc applies an in-process recipe and returns the paths it wrote.
type builtinFunc func(ctx context.Context, p *models.Plugin) ([]string, error)

var builtins = map[string]builtinFunc{
	"SetupJenkinsfile": setupJenkinsfile,
}

// ChangeLister reports the working copy paths that differ from the fetched state.
type ChangeLister interface {
	ChangedFiles(ctx context.Context, p *models.Plugin) ([]string, error)
}

// Options configure command recipes.
type Options struct {
	// MavenExecutable replaces "mvn" as the first word of a recipe command
	MavenExecutable string
	Timeout         time.Duration
}

// Executor implements interfaces.Transformer over a catalog.
type Executor struct {
	catalog *Catalog
	changes ChangeLister
	opts    Options
	logger  arbor.ILogger
}

var _ interfaces.Transformer = (*Executor)(nil)

// NewExecutor creates an executor. changes may be nil, in which case only the
// paths written by built-in recipes are reported.
func NewExecutor(catalog *Catalog, changes ChangeLister, opts Options, logger arbor.ILogger) *Executor {
	return &Executor{catalog: catalog, changes: changes, opts: opts, logger: logger}
}

func (e *Executor) Recipes() []interfaces.Recipe { return e.catalog.All() }

func (e *Executor) Recipe(name string) (interfaces.Recipe, bool) { return e.catalog.Get(name) }

// Apply runs the named recipes in order and stops at the first failing one.
// Unknown recipe names fail the whole run before anything is applied.
func (e *Executor) Apply(ctx context.Context, p *models.Plugin, names []string) (*interfaces.TransformResult, error) {
	recipes := make([]interfaces.Recipe, 0, len(names))
	for _, name := range names {
		r, ok := e.catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown recipe %q", name)
		}
		if Builtin(r) && builtins[r.Name] == nil {
			return nil, fmt.Errorf("recipe %q has no command and no built-in implementation", name)
		}
		recipes = append(recipes, r)
	}

	result := &interfaces.TransformResult{TargetJDK: ladder.None}
	written := map[string]struct{}{}
	for _, r := range recipes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.TargetJDK > result.TargetJDK {
			result.TargetJDK = r.TargetJDK
		}

		start := time.Now()
		paths, err := e.apply(ctx, p, r)
		if err != nil {
			e.logger.Error().Err(err).
				Str("plugin", p.Name).
				Str("recipe", r.Name).
				Msg("Recipe failed")
			result.Errors = append(result.Errors, fmt.Errorf("recipe %s: %w", r.Name, err))
			break
		}
		for _, path := range paths {
			written[path] = struct{}{}
		}
		e.logger.Info().
			Str("plugin", p.Name).
			Str("recipe", r.Name).
			Str("duration", time.Since(start).String()).
			Msg("Recipe applied")
	}

	if e.changes != nil {
		changed, err := e.changes.ChangedFiles(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("list changed files: %w", err)
		}
		result.ChangedFiles = changed
		return result, nil
	}
	for path := range written {
		result.ChangedFiles = append(result.ChangedFiles, path)
	}
	sort.Strings(result.ChangedFiles)
	return result, nil
}

func (e *Executor) apply(ctx context.Context, p *models.Plugin, r interfaces.Recipe) ([]string, error) {
	if Builtin(r) {
		return builtins[r.Name](ctx, p)
	}
	return nil, e.runCommand(ctx, p.LocalDir, r.Command)
}

func (e *Executor) runCommand(ctx context.Context, dir string, command []string) error {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	name, args := command[0], command[1:]
	if name == "mvn" && e.opts.MavenExecutable != "" {
		name = e.opts.MavenExecutable
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(out.String(), 20))
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
