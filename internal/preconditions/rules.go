// Package preconditions detects structural problems in a build descriptor that
// make modernization unsafe, and remediates the ones that can be fixed by a
// textual rewrite.
package preconditions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/extractors"
	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/syntax"
	"github.com/ternarybob/modernizer/internal/syntax/xmltree"
)

const (
	// LanguageLevelFloor replaces obsolete java.level values.
	LanguageLevelFloor = "8"
	// ParentTargetVersion replaces unversioned parent references.
	ParentTargetVersion = "4.88"
)

// Rule pairs a precondition kind with its detector and remediation. A nil
// Remediate means the problem cannot be fixed automatically.
type Rule struct {
	Kind    models.PreconditionKind
	Message string
	// Applicable is evaluated against the raw descriptor; nil raw means the
	// descriptor is absent
	Applicable func(raw []byte) bool
	// Remediate rewrites raw and reports whether anything changed
	Remediate func(raw []byte) ([]byte, bool)
}

var (
	obsoleteLevel    = regexp.MustCompile(`<java\.level>\s*([567])\s*</java\.level>`)
	parentBlock      = regexp.MustCompile(`(?s)<parent>.*?</parent>`)
	parentVersion    = regexp.MustCompile(`<version>\s*1\.[^<]*</version>`)
	repositoryBlock  = regexp.MustCompile(`(?s)<(repository|pluginRepository)>.*?</(?:repository|pluginRepository)>`)
	insecureURLValue = regexp.MustCompile(`<url>\s*http://`)
)

var rules = []Rule{
	{
		Kind:       models.PreconditionMissingDescriptor,
		Message:    "the repository has no build descriptor",
		Applicable: func(raw []byte) bool { return raw == nil },
	},
	{
		Kind:       models.PreconditionObsoleteLanguageLevel,
		Message:    "java.level is below " + LanguageLevelFloor,
		Applicable: func(raw []byte) bool { return obsoleteLevel.Match(raw) },
		Remediate:  remediateLanguageLevel,
	},
	{
		Kind:       models.PreconditionUnversionedParentRange,
		Message:    "the parent version uses the obsolete 1.x scheme",
		Applicable: hasUnversionedParent,
		Remediate:  remediateParentVersion,
	},
	{
		Kind:       models.PreconditionInsecureRepositoryURL,
		Message:    "a repository is declared with a plain http URL",
		Applicable: hasInsecureRepository,
		Remediate:  remediateRepositoryURLs,
	},
}

// Rules returns the fixed rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Lookup returns the rule for kind.
func Lookup(kind models.PreconditionKind) (Rule, bool) {
	for _, r := range rules {
		if r.Kind == kind {
			return r, true
		}
	}
	return Rule{}, false
}

// Detect returns the kinds of every applicable rule, in table order.
func Detect(raw []byte) []models.PreconditionKind {
	var out []models.PreconditionKind
	for _, r := range rules {
		if r.Applicable(raw) {
			out = append(out, r.Kind)
		}
	}
	return out
}

// remediateLanguageLevel only rewrites the literal values 5, 6 and 7; any other
// spelling leaves the descriptor untouched.
func remediateLanguageLevel(raw []byte) ([]byte, bool) {
	changed := false
	for _, level := range []string{"5", "6", "7"} {
		old := []byte("<java.level>" + level + "</java.level>")
		if bytes.Contains(raw, old) {
			raw = bytes.ReplaceAll(raw, old, []byte("<java.level>"+LanguageLevelFloor+"</java.level>"))
			changed = true
		}
	}
	return raw, changed
}

func hasUnversionedParent(raw []byte) bool {
	root, _ := xmltree.Parse(raw)
	if root == nil {
		return false
	}
	v := syntax.Path(root, "parent", "version")
	return v != nil && strings.HasPrefix(v.Text(), "1.")
}

func remediateParentVersion(raw []byte) ([]byte, bool) {
	out := parentBlock.ReplaceAllFunc(raw, func(block []byte) []byte {
		return parentVersion.ReplaceAll(block, []byte("<version>"+ParentTargetVersion+"</version>"))
	})
	return out, !bytes.Equal(out, raw)
}

func hasInsecureRepository(raw []byte) bool {
	root, _ := xmltree.Parse(raw)
	if root == nil {
		return false
	}
	insecure := false
	syntax.Walk(root, func(n syntax.Node, _ int) bool {
		if n.Kind() == "repository" || n.Kind() == "pluginRepository" {
			url := syntax.ChildText(n, "url")
			if url != "" && !strings.HasPrefix(url, "https://") {
				insecure = true
			}
		}
		return !insecure
	})
	return insecure
}

// remediateRepositoryURLs rewrites http:// to https:// in url tags of
// repository blocks, leaving every other URL alone.
func remediateRepositoryURLs(raw []byte) ([]byte, bool) {
	out := repositoryBlock.ReplaceAllFunc(raw, func(block []byte) []byte {
		return insecureURLValue.ReplaceAllFunc(block, func(m []byte) []byte {
			return bytes.Replace(m, []byte("http://"), []byte("https://"), 1)
		})
	})
	return out, !bytes.Equal(out, raw)
}

// Remediator applies the rule table to a working copy.
type Remediator struct {
	logger arbor.ILogger
}

// NewRemediator creates a Remediator.
func NewRemediator(logger arbor.ILogger) *Remediator {
	return &Remediator{logger: logger}
}

// DetectDir runs Detect against the descriptor of a working copy.
func (r *Remediator) DetectDir(dir string) ([]models.PreconditionKind, error) {
	raw, err := readDescriptor(dir)
	if err != nil {
		return nil, err
	}
	return Detect(raw), nil
}

// RemediateAll makes one remediation pass: every applicable rule is tried once
// and detection re-runs on the rewritten descriptor after each success. It
// returns the kinds still open afterwards.
func (r *Remediator) RemediateAll(ctx context.Context, dir string) ([]models.PreconditionKind, error) {
	raw, err := readDescriptor(dir)
	if err != nil {
		return nil, err
	}
	detected := Detect(raw)
	if len(detected) == 0 {
		return nil, nil
	}

	open := models.NewSet(detected...)
	for _, kind := range detected {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !open.Has(kind) {
			continue
		}
		rule, _ := Lookup(kind)
		if rule.Remediate == nil {
			r.logger.Warn().Str("kind", string(kind)).Msg("Precondition cannot be remediated")
			continue
		}
		rewritten, changed := rule.Remediate(raw)
		if !changed {
			r.logger.Warn().Str("kind", string(kind)).Msg("Remediation did not match descriptor")
			continue
		}
		if err := writeDescriptor(dir, rewritten); err != nil {
			return nil, err
		}
		raw = rewritten
		r.logger.Info().Str("kind", string(kind)).Msg("Precondition remediated")

		// the rewrite may have fixed or exposed other problems
		open = models.NewSet(Detect(raw)...)
	}

	var remaining []models.PreconditionKind
	for _, rule := range rules {
		if open.Has(rule.Kind) {
			remaining = append(remaining, rule.Kind)
		}
	}
	return remaining, nil
}

// readDescriptor returns nil, nil when the working copy has no descriptor.
func readDescriptor(dir string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(dir, extractors.DescriptorFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	if raw == nil {
		raw = []byte{}
	}
	return raw, nil
}

func writeDescriptor(dir string, raw []byte) error {
	path := filepath.Join(dir, extractors.DescriptorFile)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat descriptor: %w", err)
	}
	if err := os.WriteFile(path, raw, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}
