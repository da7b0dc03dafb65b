package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/modernizer/internal/common"
)

// execute runs the root command with fresh global state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFiles, envFiles, logLevel, reportPath = nil, []string{".env"}, "", ""
	flags = common.FlagOverrides{}
	config, logger = nil, nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "modernizer.toml")
	base := `
[logging]
output = ["stdout"]
level = "error"

[cache]
dir = "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"

[storage.badger]
path = "` + filepath.ToSlash(filepath.Join(dir, "history")) + `"

[run]
work_dir = "` + filepath.ToSlash(filepath.Join(dir, "work")) + `"
`
	require.NoError(t, os.WriteFile(path, []byte(base+body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Modernizer version "+common.CurrentBuild().Version)
	assert.Contains(t, out, "jdk ladder: 8, 11, 17, 21")
	assert.Nil(t, config, "version does not load the configuration")
}

func TestRecipesCommand(t *testing.T) {
	out, err := execute(t, "recipes", "--config", writeConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "SetupJenkinsfile")
	assert.Contains(t, out, "built-in")
	assert.Contains(t, out, "UpgradeParentVersion")
}

func TestLoadConfigAppliesCommandMode(t *testing.T) {
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("MODERNIZER_GITHUB_TOKEN", "")
	path := writeConfig(t, "")

	tests := []struct {
		name         string
		args         []string
		dryRun       bool
		metadataOnly bool
	}{
		{"run", []string{"run"}, false, false},
		{"dry run", []string{"dry-run"}, true, false},
		{"build metadata", []string{"build-metadata"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--config", path, "--plugins", "git,mailer", "--concurrency", "3", "extra")
			_, err := execute(t, args...)
			// Without a token the orchestrator cannot start
			require.Error(t, err)
			assert.Contains(t, err.Error(), "GitHub token")

			require.NotNil(t, config)
			assert.Equal(t, tt.dryRun, config.Run.DryRun)
			assert.Equal(t, tt.metadataOnly, config.Run.MetadataOnly)
			assert.Equal(t, 3, config.Run.Concurrency)
			assert.Equal(t, []string{"git", "mailer", "extra"}, config.Run.Plugins)
		})
	}
}

func TestLoadConfigRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "concurrency = 0\n")
	_, err := execute(t, "recipes", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunRequiresPlugins(t *testing.T) {
	_, err := execute(t, "dry-run", "--config", writeConfig(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugins selected")
}

func TestHistoryCommandEmpty(t *testing.T) {
	out, err := execute(t, "history", "--config", writeConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "No results recorded")
}
