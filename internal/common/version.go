package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/modernizer/internal/ladder"
)

// Set via -ldflags during build
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the binary and the JDK ladder it verifies against.
type BuildInfo struct {
	Version string
	Build   string
	Commit  string
	Ladder  []ladder.Rung
}

// CurrentBuild returns the build information, preferring a .version file
// next to the executable over the linked-in version.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version: LoadVersionFromFile(),
		Build:   Build,
		Commit:  GitCommit,
		Ladder:  ladder.All(),
	}
}

// LadderString renders the ladder lowest rung first, e.g. "8, 11, 17, 21".
func (b BuildInfo) LadderString() string {
	majors := make([]string, len(b.Ladder))
	for i, r := range b.Ladder {
		majors[i] = r.String()
	}
	return strings.Join(majors, ", ")
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s, jdk: %s)", b.Version, b.Build, b.Commit, b.LadderString())
}

// LoadVersionFromFile reads the version from a .version file next to the
// executable. Version is returned unchanged when there is none.
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
	if err != nil {
		return Version
	}

	if version := strings.TrimSpace(string(data)); version != "" {
		Version = version
	}
	return Version
}
