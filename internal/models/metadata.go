package models

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ternarybob/modernizer/internal/ladder"
)

// Platform is the operating system a CI configuration builds on.
type Platform string

const (
	PlatformLinux   Platform = "LINUX"
	PlatformWindows Platform = "WINDOWS"
	PlatformUnknown Platform = "UNKNOWN"
)

// ParsePlatform maps CI labels ("linux", "windows") onto a Platform.
func ParsePlatform(s string) Platform {
	switch Platform(strings.ToUpper(strings.TrimSpace(s))) {
	case PlatformLinux:
		return PlatformLinux
	case PlatformWindows:
		return PlatformWindows
	}
	return PlatformUnknown
}

// PlatformConfig is one (platform, jdk) pair of a CI configuration.
type PlatformConfig struct {
	Platform         Platform    `json:"platform"`
	JDK              ladder.Rung `json:"jdk"`
	BaselineOverride string      `json:"baselineOverride,omitempty"`
	Implicit         bool        `json:"implicit,omitempty"`
}

// DefaultPlatformConfigs are the pairs assumed when a buildPlugin call declares
// neither platforms nor JDK versions.
func DefaultPlatformConfigs() []PlatformConfig {
	return []PlatformConfig{
		{Platform: PlatformLinux, JDK: ladder.Implicit(), Implicit: true},
		{Platform: PlatformWindows, JDK: ladder.Implicit(), Implicit: true},
	}
}

// MetadataFlag is a boolean fact found while scanning the build descriptor.
type MetadataFlag string

const (
	FlagHasDevelopers              MetadataFlag = "HAS_DEVELOPERS"
	FlagHasLicenseDeclared         MetadataFlag = "HAS_LICENSE_DECLARED"
	FlagSCMHTTPS                   MetadataFlag = "SCM_HTTPS"
	FlagMavenRepositoriesHTTPS     MetadataFlag = "MAVEN_REPOSITORIES_HTTPS"
	FlagMavenPluginRepositoriesTLS MetadataFlag = "MAVEN_PLUGIN_REPOSITORIES_HTTPS"
	FlagUsesBOM                    MetadataFlag = "USES_BOM"
)

// PreconditionKind names a structural problem that blocks modernization.
type PreconditionKind string

const (
	PreconditionMissingDescriptor      PreconditionKind = "MISSING_DESCRIPTOR"
	PreconditionObsoleteLanguageLevel  PreconditionKind = "OBSOLETE_LANGUAGE_LEVEL"
	PreconditionUnversionedParentRange PreconditionKind = "UNVERSIONED_PARENT_RANGE"
	PreconditionInsecureRepositoryURL  PreconditionKind = "INSECURE_REPOSITORY_URL"
)

// Metadata accumulates what is known about one plugin repository. Empty strings
// and nil pointers mean "not known" and never override a known value on merge.
type Metadata struct {
	PluginName              string            `json:"pluginName,omitempty"`
	PlatformBaselineVersion string            `json:"platformBaselineVersion,omitempty"`
	ParentVersion           string            `json:"parentVersion,omitempty"`
	BomArtifactID           string            `json:"bomArtifactId,omitempty"`
	BomVersion              string            `json:"bomVersion,omitempty"`
	Properties              map[string]string `json:"properties,omitempty"`

	CommonFiles Set[CommonFile]       `json:"commonFiles,omitempty"`
	Flags       Set[MetadataFlag]     `json:"flags,omitempty"`
	Errors      Set[PreconditionKind] `json:"errors,omitempty"`

	Platforms []PlatformConfig `json:"platforms"`

	UsesContainerAgent *bool  `json:"usesContainerAgent,omitempty"`
	UsesContainerTests bool   `json:"usesContainerTests,omitempty"`
	ForkCount          string `json:"forkCount,omitempty"`
}

// NewMetadata returns an empty record with non-nil collections.
func NewMetadata() *Metadata {
	return &Metadata{
		Properties:  map[string]string{},
		CommonFiles: Set[CommonFile]{},
		Flags:       Set[MetadataFlag]{},
		Errors:      Set[PreconditionKind]{},
		Platforms:   []PlatformConfig{},
	}
}

// Versions projects the distinct JDK rungs of the platform configurations.
func (m *Metadata) Versions() []ladder.Rung {
	if m == nil {
		return nil
	}
	out := make([]ladder.Rung, 0, len(m.Platforms))
	for _, p := range m.Platforms {
		out = append(out, p.JDK)
	}
	return ladder.Sorted(out)
}

// PlatformNames projects the distinct platforms, sorted.
func (m *Metadata) PlatformNames() []Platform {
	if m == nil {
		return nil
	}
	seen := map[Platform]struct{}{}
	var out []Platform
	for _, p := range m.Platforms {
		if _, ok := seen[p.Platform]; ok {
			continue
		}
		seen[p.Platform] = struct{}{}
		out = append(out, p.Platform)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OnlyImplicitRungs reports whether every rung equals the implicit rung, which
// means no CI script ever declared one. A record without platforms qualifies.
func (m *Metadata) OnlyImplicitRungs() bool {
	for _, r := range m.Versions() {
		if r != ladder.Implicit() {
			return false
		}
	}
	return true
}

// HasErrors reports whether unresolved precondition errors remain.
func (m *Metadata) HasErrors() bool {
	return m != nil && len(m.Errors) > 0
}

// ClearErrors drops every recorded precondition error.
func (m *Metadata) ClearErrors() {
	m.Errors = Set[PreconditionKind]{}
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	out := NewMetadata()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil
	}
	out.normalize()
	return out
}

// UnmarshalJSON keeps collections non-nil after decoding.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Metadata(p)
	m.normalize()
	return nil
}

func (m *Metadata) normalize() {
	if m.Properties == nil {
		m.Properties = map[string]string{}
	}
	if m.CommonFiles == nil {
		m.CommonFiles = Set[CommonFile]{}
	}
	if m.Flags == nil {
		m.Flags = Set[MetadataFlag]{}
	}
	if m.Errors == nil {
		m.Errors = Set[PreconditionKind]{}
	}
	if m.Platforms == nil {
		m.Platforms = []PlatformConfig{}
	}
}
