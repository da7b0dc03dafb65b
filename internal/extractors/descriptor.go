package extractors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax"
	"github.com/ternarybob/modernizer/internal/syntax/xmltree"
)

const (
	// DescriptorFile is the build descriptor as committed.
	DescriptorFile = "pom.xml"
	// ResolvedDescriptorFile is written by a compile of the working copy.
	ResolvedDescriptorFile = "target/effective-pom.xml"

	BOMGroupID = "io.jenkins.tools.bom"
)

// baselineCoordinates identify the platform core dependency.
var baselineCoordinates = struct{ groupID, artifactID, packaging string }{
	"org.jenkins-ci.main", "jenkins-core", "jar",
}

// environmentProperties only exist in the resolving environment.
var environmentProperties = map[string]bool{
	"project.basedir": true,
	"basedir":         true,
}

// BuildDescriptorExtractor reads the resolved build descriptor.
type BuildDescriptorExtractor struct {
	logger arbor.ILogger
}

// NewBuildDescriptorExtractor creates a BuildDescriptorExtractor.
func NewBuildDescriptorExtractor(logger arbor.ILogger) *BuildDescriptorExtractor {
	return &BuildDescriptorExtractor{logger: logger}
}

func (e *BuildDescriptorExtractor) Name() string         { return "build-descriptor" }
func (e *BuildDescriptorExtractor) Source() merge.Source { return merge.SourceDescriptor }

// Extract returns an ExtractionError when the descriptor exists but has not
// been resolved yet. A working copy without any descriptor yields no facts.
func (e *BuildDescriptorExtractor) Extract(ctx context.Context, ws *Workspace) (*models.Metadata, error) {
	m := models.NewMetadata()
	if _, err := os.Stat(filepath.Join(ws.Dir, DescriptorFile)); errors.Is(err, os.ErrNotExist) {
		e.logger.Debug().Str("dir", ws.Dir).Msg("No build descriptor")
		return m, nil
	}

	raw, err := os.ReadFile(filepath.Join(ws.Dir, filepath.FromSlash(ResolvedDescriptorFile)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &models.ExtractionError{Extractor: e.Name(), Reason: "descriptor not resolved", Err: err}
		}
		return nil, &models.ExtractionError{Extractor: e.Name(), Reason: "read resolved descriptor", Err: err}
	}

	root, err := xmltree.Parse(raw)
	if root == nil {
		e.logger.Warn().Err(err).Msg("Resolved descriptor unreadable")
		return m, nil
	}
	if err != nil {
		e.logger.Debug().Err(err).Msg("Resolved descriptor partially parsed")
	}
	project := projectNode(root)
	e.apply(m, project)
	return m, nil
}

func (e *BuildDescriptorExtractor) apply(m *models.Metadata, project syntax.Node) {
	m.PluginName = syntax.ChildText(project, "artifactId")
	m.ParentVersion = syntax.ChildText(syntax.Child(project, "parent"), "version")

	for _, p := range childrenOf(syntax.Child(project, "properties")) {
		if environmentProperties[p.Kind()] {
			continue
		}
		m.Properties[p.Kind()] = p.Text()
	}

	for _, dep := range managedDependencies(project) {
		if syntax.ChildText(dep, "groupId") == BOMGroupID {
			m.BomArtifactID = syntax.ChildText(dep, "artifactId")
			m.BomVersion = syntax.ChildText(dep, "version")
			break
		}
	}

	m.PlatformBaselineVersion = baselineVersion(project)
	if m.PlatformBaselineVersion == "" {
		m.PlatformBaselineVersion = m.Properties["jenkins.version"]
	}

	for _, f := range ScanFlags(project) {
		m.Flags.Add(f)
	}
}

// projectNode returns the first project of a multi-module effective descriptor.
func projectNode(root syntax.Node) syntax.Node {
	if root.Kind() == "projects" {
		if p := syntax.Child(root, "project"); p != nil {
			return p
		}
	}
	return root
}

func dependencies(project syntax.Node) []syntax.Node {
	var out []syntax.Node
	for _, d := range childrenOf(syntax.Child(project, "dependencies")) {
		if d.Kind() == "dependency" {
			out = append(out, d)
		}
	}
	return out
}

func managedDependencies(project syntax.Node) []syntax.Node {
	var out []syntax.Node
	for _, d := range childrenOf(syntax.Path(project, "dependencyManagement", "dependencies")) {
		if d.Kind() == "dependency" {
			out = append(out, d)
		}
	}
	return out
}

func baselineVersion(project syntax.Node) string {
	deps := append(dependencies(project), managedDependencies(project)...)
	for _, d := range deps {
		packaging := syntax.ChildText(d, "type")
		if packaging == "" {
			packaging = "jar"
		}
		if syntax.ChildText(d, "groupId") == baselineCoordinates.groupID &&
			syntax.ChildText(d, "artifactId") == baselineCoordinates.artifactID &&
			packaging == baselineCoordinates.packaging {
			return syntax.ChildText(d, "version")
		}
	}
	return ""
}

func childrenOf(n syntax.Node) []syntax.Node {
	if n == nil {
		return nil
	}
	return n.Children()
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// RawBaseline reads the platform baseline from an unresolved descriptor,
// substituting ${...} placeholders from its own properties. It returns "" when
// no baseline is declared or a placeholder cannot be resolved.
func RawBaseline(raw []byte) string {
	root, _ := xmltree.Parse(raw)
	if root == nil {
		return ""
	}
	project := projectNode(root)
	props := map[string]string{}
	for _, p := range childrenOf(syntax.Child(project, "properties")) {
		props[p.Kind()] = p.Text()
	}
	version := props["jenkins.version"]
	if version == "" {
		version = baselineVersion(project)
	}
	resolved := placeholder.ReplaceAllStringFunc(version, func(ref string) string {
		return props[strings.TrimSuffix(strings.TrimPrefix(ref, "${"), "}")]
	})
	if strings.Contains(resolved, "${") || strings.HasPrefix(resolved, ".") {
		return ""
	}
	return resolved
}

// flagRule tests every element of one tag name. With all set, the flag needs
// at least one such element and every one of them to pass.
type flagRule struct {
	flag models.MetadataFlag
	tag  string
	all  bool
	test func(n syntax.Node) bool
}

var flagRules = []flagRule{
	{models.FlagHasDevelopers, "developers", false, hasChild("developer")},
	{models.FlagHasLicenseDeclared, "licenses", false, hasChild("license")},
	{models.FlagSCMHTTPS, "scm", false, func(n syntax.Node) bool {
		return strings.Contains(syntax.ChildText(n, "connection"), "https://")
	}},
	{models.FlagMavenRepositoriesHTTPS, "repository", true, httpsURL},
	{models.FlagMavenPluginRepositoriesTLS, "pluginRepository", true, httpsURL},
	{models.FlagUsesBOM, "dependency", false, func(n syntax.Node) bool {
		return syntax.ChildText(n, "groupId") == BOMGroupID && syntax.ChildText(n, "scope") == "import"
	}},
}

func hasChild(kind string) func(syntax.Node) bool {
	return func(n syntax.Node) bool { return syntax.Child(n, kind) != nil }
}

func httpsURL(n syntax.Node) bool {
	return strings.HasPrefix(syntax.ChildText(n, "url"), "https://")
}

// ScanFlags walks every element under root against the flag table.
func ScanFlags(root syntax.Node) []models.MetadataFlag {
	seen := make([]int, len(flagRules))
	passed := make([]int, len(flagRules))
	syntax.Walk(root, func(n syntax.Node, _ int) bool {
		for i, r := range flagRules {
			if n.Kind() != r.tag {
				continue
			}
			seen[i]++
			if r.test(n) {
				passed[i]++
			}
		}
		return true
	})

	var out []models.MetadataFlag
	for i, r := range flagRules {
		ok := passed[i] > 0
		if r.all {
			ok = seen[i] > 0 && passed[i] == seen[i]
		}
		if ok {
			out = append(out, r.flag)
		}
	}
	return out
}

// ReadDescriptor returns the raw committed descriptor.
func ReadDescriptor(dir string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DescriptorFile, err)
	}
	return raw, nil
}
