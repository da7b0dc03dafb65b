// Package transform loads the recipe catalog and applies recipes to working
// copies.
package transform

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/modernizer/internal/interfaces"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Catalog is an immutable, name-indexed set of recipes.
type Catalog struct {
	recipes []interfaces.Recipe
	byName  map[string]int
}

type catalogFile struct {
	Recipes []interfaces.Recipe `yaml:"recipes" validate:"dive"`
}

// LoadCatalog parses the embedded catalog and, when overridePath is set,
// overlays the recipes of that file. An override recipe replaces the embedded
// recipe of the same name.
func LoadCatalog(overridePath string) (*Catalog, error) {
	base, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	if overridePath == "" {
		return base, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe catalog %s: %w", overridePath, err)
	}
	extra, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("recipe catalog %s: %w", overridePath, err)
	}
	return base.With(extra.recipes...), nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	c := &Catalog{byName: make(map[string]int, len(f.Recipes))}
	for _, r := range f.Recipes {
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate recipe %q", r.Name)
		}
		c.byName[r.Name] = len(c.recipes)
		c.recipes = append(c.recipes, r)
	}
	return c, nil
}

// With returns a new catalog with recipes added or replaced by name.
func (c *Catalog) With(recipes ...interfaces.Recipe) *Catalog {
	out := &Catalog{byName: make(map[string]int, len(c.recipes)+len(recipes))}
	for _, r := range c.recipes {
		out.byName[r.Name] = len(out.recipes)
		out.recipes = append(out.recipes, r)
	}
	for _, r := range recipes {
		if i, ok := out.byName[r.Name]; ok {
			out.recipes[i] = r
			continue
		}
		out.byName[r.Name] = len(out.recipes)
		out.recipes = append(out.recipes, r)
	}
	return out
}

// All returns the recipes sorted by name.
func (c *Catalog) All() []interfaces.Recipe {
	out := make([]interfaces.Recipe, len(c.recipes))
	copy(out, c.recipes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Get(name string) (interfaces.Recipe, bool) {
	i, ok := c.byName[name]
	if !ok {
		return interfaces.Recipe{}, false
	}
	return c.recipes[i], true
}

// Builtin reports whether the recipe is implemented in process.
func Builtin(r interfaces.Recipe) bool { return len(r.Command) == 0 }
