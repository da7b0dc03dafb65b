package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

// recorder collects the calls made to the fakes, in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Has(call string) bool {
	for _, c := range r.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

type fakeRepos struct {
	*recorder
	files      map[string]string
	archived   map[string]bool
	deprecated bool
	nothingNew bool
	changed    []string
	deleteErr  error
	openPRs    map[string]bool
}

func (f *fakeRepos) Fetch(_ context.Context, p *models.Plugin) error {
	f.record("fetch %s", p.Name)
	if err := os.MkdirAll(p.LocalDir, 0o755); err != nil {
		return err
	}
	for name, content := range f.files {
		path := filepath.Join(p.LocalDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRepos) Restore(_ context.Context, p *models.Plugin) error {
	f.record("restore %s", p.Name)
	return nil
}

func (f *fakeRepos) Fork(_ context.Context, p *models.Plugin) error {
	f.record("fork %s", p.Name)
	return nil
}

func (f *fakeRepos) Sync(_ context.Context, p *models.Plugin) error {
	f.record("sync %s", p.Name)
	return nil
}

func (f *fakeRepos) Commit(_ context.Context, p *models.Plugin, branch, message string) (bool, error) {
	f.record("commit %s %s %q", p.Name, branch, message)
	return !f.nothingNew, nil
}

func (f *fakeRepos) Push(_ context.Context, p *models.Plugin, branch string) error {
	f.record("push %s %s", p.Name, branch)
	return nil
}

func (f *fakeRepos) OpenChangeRequest(_ context.Context, p *models.Plugin, cr interfaces.ChangeRequest) (string, error) {
	f.record("change request %s %q", p.Name, cr.Title)
	return "https://github.com/jenkinsci/" + p.Repository + "/pull/1", nil
}

func (f *fakeRepos) DeleteFork(_ context.Context, p *models.Plugin) (bool, error) {
	f.record("delete fork %s", p.Name)
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return !f.openPRs[p.Name], nil
}

func (f *fakeRepos) IsArchived(_ context.Context, p *models.Plugin) (bool, error) {
	return f.archived[p.Name], nil
}

func (f *fakeRepos) IsDeprecated(_ context.Context, p *models.Plugin) (bool, error) {
	return f.deprecated, nil
}

func (f *fakeRepos) ChangedFiles(_ context.Context, p *models.Plugin) ([]string, error) {
	return f.changed, nil
}

// fakeBuilds copies the committed descriptor to the resolved location on
// compile and verify, as the real build does.
type fakeBuilds struct {
	*recorder
	verifyFails bool
}

func (f *fakeBuilds) result(success bool) *interfaces.BuildResult {
	return &interfaces.BuildResult{Success: success, Output: "[INFO] BUILD", Duration: time.Millisecond}
}

func (f *fakeBuilds) Compile(_ context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	f.record("compile %d", jdk)
	ok, err := resolveDescriptor(dir)
	if err != nil {
		return nil, err
	}
	return f.result(ok), nil
}

func resolveDescriptor(dir string) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	if err != nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(dir, "target", "effective-pom.xml"), raw, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeBuilds) Clean(_ context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	f.record("clean %d", jdk)
	return f.result(true), os.RemoveAll(filepath.Join(dir, "target"))
}

func (f *fakeBuilds) Format(_ context.Context, _ string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	f.record("format %d", jdk)
	return f.result(true), nil
}

func (f *fakeBuilds) Verify(_ context.Context, dir string, jdk ladder.Rung) (*interfaces.BuildResult, error) {
	f.record("verify %d", jdk)
	if _, err := resolveDescriptor(dir); err != nil {
		return nil, err
	}
	if f.verifyFails {
		return &interfaces.BuildResult{Success: false, Output: "[ERROR] Tests failed"}, nil
	}
	return f.result(true), nil
}

type fakeTransformer struct {
	*recorder
	result *interfaces.TransformResult
	err    error
	panics bool
}

var testRecipes = []interfaces.Recipe{
	{Name: "SetupJenkinsfile", Description: "Add a Jenkinsfile building the plugin."},
	{Name: "UpgradeParentVersion", Description: "Upgrade the parent POM.", Command: []string{"mvn"}},
}

func (f *fakeTransformer) Apply(_ context.Context, p *models.Plugin, recipes []string) (*interfaces.TransformResult, error) {
	f.record("apply %s %v", p.Name, recipes)
	if f.panics {
		panic("transformer exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &interfaces.TransformResult{ChangedFiles: []string{"Jenkinsfile"}}, nil
}

func (f *fakeTransformer) Recipes() []interfaces.Recipe { return testRecipes }

func (f *fakeTransformer) Recipe(name string) (interfaces.Recipe, bool) {
	for _, r := range testRecipes {
		if r.Name == name {
			return r, true
		}
	}
	return interfaces.Recipe{}, false
}

// fakeCollector returns its results in sequence, repeating the last one.
type fakeCollector struct {
	*recorder
	results []collected
	n       int
}

type collected struct {
	m   *models.Metadata
	err error
}

func (f *fakeCollector) Collect(_ context.Context, _ string, finalized *models.Metadata) (*models.Metadata, error) {
	f.record("collect")
	f.mu.Lock()
	r := f.results[min(f.n, len(f.results)-1)]
	f.n++
	f.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.m.Clone(), nil
}

type fakeRemediator struct {
	*recorder
	open     []models.PreconditionKind
	detected []models.PreconditionKind
}

func (f *fakeRemediator) RemediateAll(context.Context, string) ([]models.PreconditionKind, error) {
	f.record("remediate")
	return f.open, nil
}

func (f *fakeRemediator) DetectDir(string) ([]models.PreconditionKind, error) {
	f.record("detect")
	return f.detected, nil
}

type memoryCache struct {
	mu      sync.Mutex
	records map[string]*models.Metadata
}

func newMemoryCache() *memoryCache {
	return &memoryCache{records: map[string]*models.Metadata{}}
}

func (c *memoryCache) Load(_ context.Context, repo string) (*models.Metadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.records[repo]
	if !ok {
		return nil, false, nil
	}
	return m.Clone(), true, nil
}

func (c *memoryCache) Store(_ context.Context, repo string, m *models.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[repo] = m.Clone()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, repo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, repo)
	return nil
}

func (c *memoryCache) LoadRoot(ctx context.Context) (*models.Metadata, bool, error) {
	return c.Load(ctx, "")
}

func (c *memoryCache) StoreRoot(ctx context.Context, m *models.Metadata) error {
	return c.Store(ctx, "", m)
}

func (c *memoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = map[string]*models.Metadata{}
	return nil
}

type memoryRuns struct {
	mu      sync.Mutex
	results []*models.Result
}

func (r *memoryRuns) SaveResult(_ context.Context, result *models.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *memoryRuns) GetResult(context.Context, string) (*models.Result, error) {
	return nil, interfaces.ErrNotFound
}

func (r *memoryRuns) ListByRun(context.Context, string) ([]*models.Result, error) { return nil, nil }

func (r *memoryRuns) ListByPlugin(context.Context, string) ([]*models.Result, error) { return nil, nil }

func (r *memoryRuns) ListRecent(context.Context, int) ([]*models.Result, error) { return nil, nil }

func (r *memoryRuns) DeleteRun(context.Context, string) error { return nil }

func (r *memoryRuns) Saved() []*models.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Result(nil), r.results...)
}
