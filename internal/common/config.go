package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	GitHub    GitHubConfig    `toml:"github"`
	Cache     CacheConfig     `toml:"cache"`
	Storage   StorageConfig   `toml:"storage"`
	Build     BuildConfig     `toml:"build"`
	Transform TransformConfig `toml:"transform"`
	Run       RunConfig       `toml:"run"`
	Logging   LoggingConfig   `toml:"logging"`
}

// GitHubConfig configures access to the repository host
type GitHubConfig struct {
	Token             string `toml:"token"`                                        // Prefer GH_TOKEN in the environment or .env
	SourceOrg         string `toml:"source_org" validate:"required"`               // Organization owning the plugin repositories
	ForkOrg           string `toml:"fork_org"`                                     // Organization receiving forks (default: token owner)
	APIURL            string `toml:"api_url" validate:"omitempty,url"`             // GitHub Enterprise API endpoint
	GitURL            string `toml:"git_url"`                                      // Base of clone and push URLs
	GitPath           string `toml:"git_path"`                                     // git executable
	CommitName        string `toml:"commit_name"`                                  // Author name of generated commits
	CommitEmail       string `toml:"commit_email" validate:"omitempty,email"`      // Author email of generated commits
	RequestsPerSecond int    `toml:"requests_per_second" validate:"gte=1,lte=100"` // API rate limit
}

// CacheConfig configures the metadata cache
type CacheConfig struct {
	Dir           string `toml:"dir" validate:"required"`         // Root of <repo>/metadata.json records
	MemoryEntries int    `toml:"memory_entries" validate:"gte=0"` // Records kept in memory in front of the files
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required_without=InMemory"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`                          // Delete run history on startup
	InMemory       bool   `toml:"in_memory"`                                 // Keep run history in memory only
}

// BuildConfig configures the Maven build runner
type BuildConfig struct {
	MavenExecutable string            `toml:"maven_executable"`
	Timeout         string            `toml:"timeout"` // e.g., "30m"
	Offline         bool              `toml:"offline"`
	ExtraArgs       []string          `toml:"extra_args"`
	JavaHomes       map[string]string `toml:"java_homes"` // JDK major version -> JAVA_HOME
}

// TransformConfig configures the recipes applied to each plugin
type TransformConfig struct {
	Recipes     []string `toml:"recipes" validate:"dive,required"`
	CatalogFile string   `toml:"catalog_file"` // Extra recipes overriding the embedded catalog
	Timeout     string   `toml:"timeout"`      // Per recipe, e.g., "20m"
}

// RunConfig configures a batch run
type RunConfig struct {
	WorkDir         string   `toml:"work_dir" validate:"required"`
	Concurrency     int      `toml:"concurrency" validate:"gte=1,lte=64"`
	Branch          string   `toml:"branch" validate:"required"`
	Plugins         []string `toml:"plugins"`
	PluginFile      string   `toml:"plugin_file"`
	DryRun          bool     `toml:"dry_run"`
	MetadataOnly    bool     `toml:"metadata_only"`
	ForceMetadata   bool     `toml:"force_metadata"` // Ignore and overwrite cached metadata
	SkipPush        bool     `toml:"skip_push"`
	SkipPullRequest bool     `toml:"skip_pull_request"`
	Draft           bool     `toml:"draft"`
	CleanLocalData  bool     `toml:"clean_local_data"` // Remove working copies after each plugin

	CommitMessage    string `toml:"commit_message"`     // Supports {plugin}, {recipes}, {jdk}
	PullRequestTitle string `toml:"pull_request_title"` // Supports {plugin}, {recipes}, {jdk}
}

// Run modes, as reported by RunMode
const (
	RunModeRun          = "run"
	RunModeDryRun       = "dry_run"
	RunModeMetadataOnly = "metadata_only"
)

// RunMode names the mode the run flags select. Metadata-only wins over dry-run.
func (c *Config) RunMode() string {
	switch {
	case c.Run.MetadataOnly:
		return RunModeMetadataOnly
	case c.Run.DryRun:
		return RunModeDryRun
	}
	return RunModeRun
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"`
	Dir    string   `toml:"dir"` // Log file and crash report directory (default: ./logs)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			SourceOrg:         "jenkinsci",
			GitURL:            "https://github.com",
			GitPath:           "git",
			CommitName:        "plugin-modernizer",
			CommitEmail:       "plugin-modernizer@users.noreply.github.com",
			RequestsPerSecond: 5,
		},
		Cache: CacheConfig{
			Dir:           "./data/cache",
			MemoryEntries: 256,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/history",
			},
		},
		Build: BuildConfig{
			MavenExecutable: "mvn",
			Timeout:         "30m",
			JavaHomes:       map[string]string{},
		},
		Transform: TransformConfig{
			Recipes: []string{"SetupJenkinsfile"},
			Timeout: "20m",
		},
		Run: RunConfig{
			WorkDir:     "./data/work",
			Concurrency: 1, // Repositories are processed one at a time unless raised
			Branch:      "plugin-modernizer-tool",

			CommitMessage:    "Apply {recipes} to {plugin}",
			PullRequestTitle: "Modernize {plugin}: {recipes}",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> files -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadDotEnv loads KEY=VALUE files into the environment. Missing files are
// skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides applies MODERNIZER_* environment variables
func applyEnvOverrides(config *Config) {
	// GitHub configuration (MODERNIZER_GITHUB_TOKEN wins over GH_TOKEN, then GITHUB_TOKEN)
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN", "MODERNIZER_GITHUB_TOKEN"} {
		if token := os.Getenv(key); token != "" {
			config.GitHub.Token = token
		}
	}
	if org := os.Getenv("MODERNIZER_SOURCE_ORG"); org != "" {
		config.GitHub.SourceOrg = org
	}
	if org := os.Getenv("MODERNIZER_FORK_ORG"); org != "" {
		config.GitHub.ForkOrg = org
	}
	if apiURL := os.Getenv("MODERNIZER_GITHUB_API_URL"); apiURL != "" {
		config.GitHub.APIURL = apiURL
	}

	// Cache and storage configuration
	if dir := os.Getenv("MODERNIZER_CACHE_DIR"); dir != "" {
		config.Cache.Dir = dir
	}
	if badgerPath := os.Getenv("MODERNIZER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Build configuration
	if mvn := os.Getenv("MODERNIZER_MAVEN"); mvn != "" {
		config.Build.MavenExecutable = mvn
	}
	const javaHomePrefix = "MODERNIZER_JAVA_HOME_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, javaHomePrefix) || value == "" {
			continue
		}
		if config.Build.JavaHomes == nil {
			config.Build.JavaHomes = map[string]string{}
		}
		config.Build.JavaHomes[strings.TrimPrefix(key, javaHomePrefix)] = value
	}

	// Run configuration
	if workDir := os.Getenv("MODERNIZER_WORK_DIR"); workDir != "" {
		config.Run.WorkDir = workDir
	}
	if concurrency := os.Getenv("MODERNIZER_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Run.Concurrency = c
		}
	}
	if dryRun := os.Getenv("MODERNIZER_DRY_RUN"); dryRun != "" {
		if b, err := strconv.ParseBool(dryRun); err == nil {
			config.Run.DryRun = b
		}
	}

	// Logging configuration
	if level := os.Getenv("MODERNIZER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MODERNIZER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}
}

// FlagOverrides carries command-line values; zero values leave the config alone
type FlagOverrides struct {
	Plugins         []string
	PluginFile      string
	Recipes         []string
	Concurrency     int
	LogLevel        string
	DryRun          bool
	MetadataOnly    bool
	ForceMetadata   bool
	SkipPush        bool
	SkipPullRequest bool
	Draft           bool
	CleanLocalData  bool
}

// ApplyFlagOverrides applies command-line flags (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if len(flags.Plugins) > 0 {
		config.Run.Plugins = flags.Plugins
	}
	if flags.PluginFile != "" {
		config.Run.PluginFile = flags.PluginFile
	}
	if len(flags.Recipes) > 0 {
		config.Transform.Recipes = flags.Recipes
	}
	if flags.Concurrency > 0 {
		config.Run.Concurrency = flags.Concurrency
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	config.Run.DryRun = config.Run.DryRun || flags.DryRun
	config.Run.MetadataOnly = config.Run.MetadataOnly || flags.MetadataOnly
	config.Run.ForceMetadata = config.Run.ForceMetadata || flags.ForceMetadata
	config.Run.SkipPush = config.Run.SkipPush || flags.SkipPush
	config.Run.SkipPullRequest = config.Run.SkipPullRequest || flags.SkipPullRequest
	config.Run.Draft = config.Run.Draft || flags.Draft
	config.Run.CleanLocalData = config.Run.CleanLocalData || flags.CleanLocalData
}

// ValidateConfig checks struct constraints and the duration fields
func ValidateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := config.Build.TimeoutDuration(); err != nil {
		return fmt.Errorf("invalid build.timeout: %w", err)
	}
	if _, err := config.Transform.TimeoutDuration(); err != nil {
		return fmt.Errorf("invalid transform.timeout: %w", err)
	}
	if config.Run.DryRun && config.Run.MetadataOnly {
		return fmt.Errorf("invalid configuration: dry_run and metadata_only are mutually exclusive")
	}
	return nil
}

// RequireToken reports a missing GitHub token
func (c *Config) RequireToken() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("a GitHub token is required: set GH_TOKEN or github.token")
	}
	return nil
}

// TimeoutDuration parses Timeout; empty means no timeout
func (b BuildConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(b.Timeout)
}

// TimeoutDuration parses Timeout; empty means no timeout
func (t TransformConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(t.Timeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
