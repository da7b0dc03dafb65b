package common

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlugins(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plugins.txt", `
# core plugins
git
mailer-plugin   # repository name
  credentials

git
`)

	tests := []struct {
		name string
		run  RunConfig
		want []string
	}{
		{
			name: "flag list",
			run:  RunConfig{Plugins: []string{"git", " mailer ", "git"}},
			want: []string{"git", "mailer"},
		},
		{
			name: "file",
			run:  RunConfig{PluginFile: file},
			want: []string{"git", "mailer", "credentials"},
		},
		{
			name: "flag list before file",
			run:  RunConfig{Plugins: []string{"credentials"}, PluginFile: file},
			want: []string{"credentials", "git", "mailer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePlugins(tt.run)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePluginsErrors(t *testing.T) {
	_, err := ResolvePlugins(RunConfig{})
	assert.ErrorContains(t, err, "no plugins selected")

	_, err = ResolvePlugins(RunConfig{PluginFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestReplacePlaceholders(t *testing.T) {
	values := map[string]string{"plugin": "git", "recipes": "SetupJenkinsfile"}

	assert.Equal(t, "Modernize git: SetupJenkinsfile",
		ReplacePlaceholders("Modernize {plugin}: {recipes}", values, nil))
	assert.Equal(t, "Apply {unknown}", ReplacePlaceholders("Apply {unknown}", values, nil))
	assert.Equal(t, "", ReplacePlaceholders("", values, nil))
}

func TestCapturePanic(t *testing.T) {
	err := CapturePanic(func() error { panic("boom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Contains(t, pe.Stack, "goroutine")

	assert.NoError(t, CapturePanic(func() error { return nil }))
}
