package extractors

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/ladder"
	"github.com/ternarybob/modernizer/internal/merge"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax"
	"github.com/ternarybob/modernizer/internal/syntax/groovy"
)

const (
	// CIScriptFile is the pipeline script at the repository root.
	CIScriptFile = "Jenkinsfile"

	buildPluginCall = "buildPlugin"
	// maxIndirection bounds variable chains such as `def a = b; def b = [...]`.
	maxIndirection = 8
)

// CIScriptExtractor reads platform and JDK configurations from the first
// buildPlugin call of the pipeline script.
type CIScriptExtractor struct {
	logger arbor.ILogger
}

// NewCIScriptExtractor creates a CIScriptExtractor.
func NewCIScriptExtractor(logger arbor.ILogger) *CIScriptExtractor {
	return &CIScriptExtractor{logger: logger}
}

func (e *CIScriptExtractor) Name() string         { return "ci-script" }
func (e *CIScriptExtractor) Source() merge.Source { return merge.SourceCIScript }

func (e *CIScriptExtractor) Extract(ctx context.Context, ws *Workspace) (*models.Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(ws.Dir, CIScriptFile))
	if errors.Is(err, os.ErrNotExist) {
		return models.NewMetadata(), nil
	}
	if err != nil {
		return nil, &models.ExtractionError{Extractor: e.Name(), Reason: "read pipeline script", Err: err}
	}
	return e.ExtractScript(raw), nil
}

// ExtractScript extracts facts from pipeline script source.
func (e *CIScriptExtractor) ExtractScript(src []byte) *models.Metadata {
	m := models.NewMetadata()
	root, err := groovy.Parse(src)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Pipeline script partially parsed")
	}

	call := findCall(root, buildPluginCall)
	if call == nil {
		e.logger.Debug().Msg("No buildPlugin call in pipeline script")
		return m
	}

	s := newScope(root)
	args := namedArgs(call)

	switch {
	case args["configurations"] != nil:
		m.Platforms = e.configurations(s, s.resolve(args["configurations"]))
	default:
		m.Platforms = e.crossJoin(s.list(args["platforms"]), s.list(args["jdkVersions"]))
	}

	if n := s.resolve(args["forkCount"]); n != nil {
		switch n.Kind() {
		case groovy.KindString, groovy.KindNumber:
			m.ForkCount = n.Text()
		}
	}
	if n := s.resolve(args["useContainerAgent"]); n != nil && n.Kind() == groovy.KindBoolean {
		v := n.Text() == "true"
		m.UsesContainerAgent = &v
	}
	return m
}

// configurations reads a list of [platform: ..., jdk: ...] maps.
func (e *CIScriptExtractor) configurations(s scope, list syntax.Node) []models.PlatformConfig {
	out := []models.PlatformConfig{}
	if list == nil || list.Kind() != groovy.KindList {
		return out
	}
	for _, item := range list.Children() {
		item = s.resolve(item)
		if item == nil || item.Kind() != groovy.KindMap {
			continue
		}
		entries := mapEntries(item)
		cfg := models.PlatformConfig{Platform: models.PlatformUnknown, JDK: ladder.Implicit()}
		if p := s.resolve(entries["platform"]); p != nil {
			cfg.Platform = models.ParsePlatform(p.Text())
		}
		if j := s.resolve(entries["jdk"]); j != nil {
			r, err := ladder.ParseRung(j.Text())
			if err != nil {
				e.logger.Debug().Str("jdk", j.Text()).Msg("Unsupported JDK in configuration")
				continue
			}
			cfg.JDK = r
		} else {
			cfg.Implicit = true
		}
		out = appendUnique(out, cfg)
	}
	return out
}

// crossJoin pairs platforms and JDKs by position. The shorter list repeats its
// last element, so a single JDK applies to every platform. A missing list
// falls back to the ladder defaults.
func (e *CIScriptExtractor) crossJoin(platforms, jdks []syntax.Node) []models.PlatformConfig {
	if len(platforms) == 0 && len(jdks) == 0 {
		return models.DefaultPlatformConfigs()
	}

	ps := make([]models.Platform, 0, len(platforms))
	for _, p := range platforms {
		ps = append(ps, models.ParsePlatform(p.Text()))
	}
	if len(ps) == 0 {
		ps = []models.Platform{models.PlatformLinux, models.PlatformWindows}
	}

	implicit := len(jdks) == 0
	rs := make([]ladder.Rung, 0, len(jdks))
	for _, j := range jdks {
		r, err := ladder.ParseRung(j.Text())
		if err != nil {
			e.logger.Debug().Str("jdk", j.Text()).Msg("Unsupported JDK version")
			continue
		}
		rs = append(rs, r)
	}
	if len(rs) == 0 {
		rs = []ladder.Rung{ladder.Implicit()}
	}

	n := max(len(ps), len(rs))
	out := make([]models.PlatformConfig, 0, n)
	for i := 0; i < n; i++ {
		out = appendUnique(out, models.PlatformConfig{
			Platform: ps[min(i, len(ps)-1)],
			JDK:      rs[min(i, len(rs)-1)],
			Implicit: implicit,
		})
	}
	return out
}

func appendUnique(list []models.PlatformConfig, c models.PlatformConfig) []models.PlatformConfig {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}

func findCall(root syntax.Node, name string) syntax.Node {
	var found syntax.Node
	syntax.Walk(root, func(n syntax.Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Kind() == groovy.KindCall && n.Text() == name {
			found = n
			return false
		}
		return true
	})
	return found
}

func namedArgs(call syntax.Node) map[string]syntax.Node {
	out := map[string]syntax.Node{}
	for _, c := range call.Children() {
		if c.Kind() != groovy.KindNamedArg || len(c.Children()) == 0 {
			continue
		}
		if _, dup := out[c.Text()]; !dup {
			out[c.Text()] = c.Children()[0]
		}
	}
	return out
}

func mapEntries(m syntax.Node) map[string]syntax.Node {
	out := map[string]syntax.Node{}
	for _, c := range m.Children() {
		if c.Kind() == groovy.KindMapEntry && len(c.Children()) > 0 {
			out[c.Text()] = c.Children()[0]
		}
	}
	return out
}

// scope is the script's single flat variable table. The first declaration of a
// name wins, wherever it appears.
type scope map[string]syntax.Node

func newScope(root syntax.Node) scope {
	s := scope{}
	syntax.Visit(root, groovy.KindDeclaration, func(n syntax.Node) {
		if _, seen := s[n.Text()]; seen || len(n.Children()) == 0 {
			return
		}
		s[n.Text()] = n.Children()[0]
	})
	return s
}

// resolve follows identifier references to their declared value. Unknown
// identifiers resolve to nil.
func (s scope) resolve(n syntax.Node) syntax.Node {
	for i := 0; n != nil && n.Kind() == groovy.KindIdentifier; i++ {
		if i == maxIndirection {
			return nil
		}
		n = s[n.Text()]
	}
	return n
}

// list resolves n and returns its items, each resolved in turn.
func (s scope) list(n syntax.Node) []syntax.Node {
	n = s.resolve(n)
	if n == nil {
		return nil
	}
	if n.Kind() != groovy.KindList {
		// a scalar stands for a one-element list
		if n.Kind() == groovy.KindString || n.Kind() == groovy.KindNumber {
			return []syntax.Node{n}
		}
		return nil
	}
	var out []syntax.Node
	for _, item := range n.Children() {
		if v := s.resolve(item); v != nil {
			out = append(out, v)
		}
	}
	return out
}
