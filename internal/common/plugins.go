package common

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ResolvePlugins returns the plugin names selected by run.Plugins and
// run.PluginFile, in order of first appearance, without duplicates. The plugin
// file holds one name per line; blank lines and '#' comments are ignored.
func ResolvePlugins(run RunConfig) ([]string, error) {
	names := append([]string(nil), run.Plugins...)

	if run.PluginFile != "" {
		f, err := os.Open(run.PluginFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if i := strings.Index(line, "#"); i >= 0 {
				line = line[:i]
			}
			names = append(names, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read plugin file %s: %w", run.PluginFile, err)
		}
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSuffix(strings.TrimSpace(name), "-plugin")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no plugins selected: use --plugins or --plugin-file")
	}
	return out, nil
}
