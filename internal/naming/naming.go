// Package naming maps declared entity names onto table and route names.
package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Config holds naming overrides for irregular words.
type Config struct {
	// PluralOverrides maps a singular word to an explicit plural form.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
	// SingularOverrides maps a plural word to an explicit singular form.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// Namer applies pluralization rules with configured overrides.
type Namer struct {
	config Config
}

// NewNamer creates a Namer with the given override configuration.
func NewNamer(config Config) *Namer {
	return &Namer{config: config}
}

// Pluralize converts a singular word to its plural form, checking
// overrides before falling back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize converts a plural word to its singular form, checking
// overrides before falling back to the inflection library.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// Collection returns the plural, snake_case collection name used for an
// entity's default table and its REST route segment.
func (n *Namer) Collection(entityName string) string {
	return n.Pluralize(SnakeCase(entityName))
}

// SnakeCase converts CamelCase or mixedCase identifiers to snake_case.
func SnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
