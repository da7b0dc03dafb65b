package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/modernizer/internal/extractors"
	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/models"
)

// jenkinsfileTemplate takes the highest and the second highest rung.
const jenkinsfileTemplate = `/*
 See the documentation for more options:
 https://github.com/jenkins-infra/pipeline-library/
*/
buildPlugin(
  forkCount: '1C', // run this number of tests in parallel for faster feedback.  If the number terminates with a 'C', the value will be multiplied by the number of available CPU cores
  useContainerAgent: true, // Set to ` + "`false`" + ` if you need to use Docker for containerized tests
  configurations: [
    [platform: 'linux', jdk: %d],
    [platform: 'windows', jdk: %d],
])
`

// RenderJenkinsfile renders the CI script for the two highest rungs of
// candidates. A single rung is used for both configurations.
func RenderJenkinsfile(candidates []ladder.Rung) (string, error) {
	top := ladder.TopTwoDescending(candidates)
	switch len(top) {
	case 0:
		return "", errors.New("no jdk version to build with")
	case 1:
		top = append(top, top[0])
	}
	return fmt.Sprintf(jenkinsfileTemplate, top[0].Major(), top[1].Major()), nil
}

// jenkinsfileRungs picks the rungs a generated CI script builds with. Two or
// more explicitly declared rungs are used as they are. Otherwise the set is
// topped up with the rungs the baseline admits at or above the pinned rung,
// so the two configurations differ whenever the baseline allows it.
func jenkinsfileRungs(p *models.Plugin) []ladder.Rung {
	m := p.Metadata
	var declared []ladder.Rung
	if m != nil && len(m.Platforms) > 0 && !m.OnlyImplicitRungs() {
		declared = m.Versions()
	}
	if len(declared) >= 2 {
		return declared
	}

	floor := p.JDK
	for _, r := range declared {
		floor = max(floor, r.Major())
	}
	baseline := ""
	if m != nil {
		baseline = m.PlatformBaselineVersion
	}
	out := declared
	for _, r := range ladder.AdmissibleRungs(baseline) {
		if r.Major() >= floor {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return ladder.AdmissibleRungs(baseline)
	}
	return ladder.Sorted(out)
}

// setupJenkinsfile writes the generated CI script when the working copy has
// none. An existing script is left alone.
func setupJenkinsfile(_ context.Context, p *models.Plugin) ([]string, error) {
	path := filepath.Join(p.LocalDir, extractors.CIScriptFile)
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", extractors.CIScriptFile, err)
	}

	content, err := RenderJenkinsfile(jenkinsfileRungs(p))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", extractors.CIScriptFile, err)
	}
	return []string{extractors.CIScriptFile}, nil
}
