package orchestrator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/models"
)

// expand fills the {plugin}, {recipes} and {jdk} placeholders of a message template.
func (o *Orchestrator) expand(template string, p *models.Plugin, logger arbor.ILogger) string {
	return common.ReplacePlaceholders(template, map[string]string{
		"plugin":  p.Name,
		"recipes": strings.Join(o.opts.Recipes, ", "),
		"jdk":     strconv.Itoa(p.JDK),
	}, logger)
}

func (o *Orchestrator) changeRequest(p *models.Plugin, logger arbor.ILogger) interfaces.ChangeRequest {
	return interfaces.ChangeRequest{
		Title:  o.expand(o.opts.PullRequestTitle, p, logger),
		Body:   o.changeRequestBody(p),
		Branch: o.opts.Branch,
		Draft:  o.opts.Draft,
	}
}

// changeRequestBody renders the applied recipes, the changed files and any
// verification warning as markdown.
func (o *Orchestrator) changeRequestBody(p *models.Plugin) string {
	var b strings.Builder

	b.WriteString("## Changes\n\n")
	for _, name := range o.opts.Recipes {
		if recipe, ok := o.transformer.Recipe(name); ok {
			fmt.Fprintf(&b, "- **%s**: %s\n", recipe.Name, strings.TrimSpace(recipe.Description))
		} else {
			fmt.Fprintf(&b, "- **%s**\n", name)
		}
	}

	if len(p.ChangedFiles) > 0 {
		b.WriteString("\n## Files\n\n")
		for _, file := range p.ChangedFiles {
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
	}

	for _, w := range p.Warnings {
		var verification *models.VerificationWarning
		if errors.As(w, &verification) {
			b.WriteString("\n## Verification\n\n")
			fmt.Fprintf(&b, "> [!WARNING]\n> The build failed with JDK %d. Review the build before merging.\n", verification.JDK)
			break
		}
	}

	if p.JDK != 0 {
		fmt.Fprintf(&b, "\nVerified with JDK %d.\n", p.JDK)
	}
	return b.String()
}
