package common

import (
	"regexp"

	"github.com/ternarybob/arbor"
)

// placeholderPattern matches {name} references in message templates
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplacePlaceholders replaces {name} references in input with values.
// Unknown names are left unchanged and logged as warnings.
//
// Example:
//
//	ReplacePlaceholders("Modernize {plugin}", map[string]string{"plugin": "git"}, logger)
//	Returns: "Modernize git"
func ReplacePlaceholders(input string, values map[string]string, logger arbor.ILogger) string {
	if input == "" {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := values[name]; ok {
			return value
		}
		if logger != nil {
			logger.Warn().
				Str("reference", match).
				Msg("Unresolved placeholder in message template")
		}
		return match
	})
}
