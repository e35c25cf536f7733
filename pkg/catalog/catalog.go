// Package catalog maps a learner's session selection (target language and
// proficiency) to the locale code and instruction prompt used by the
// conversation view.
//
// The lookup tables are immutable once built. The default catalog is embedded
// in the binary and decoded once; alternative catalogs can be loaded from YAML
// and passed to the view explicitly.
//
// Example usage:
//
//	settings := catalog.Default().Derive(&catalog.Selection{
//	    Language:    catalog.French,
//	    Proficiency: catalog.Beginner,
//	})
//	// settings.LocaleCode == "fr-FR"
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Language is a target language name as sent by the settings screen.
type Language string

// Proficiency is a learner level name as sent by the settings screen.
type Proficiency string

// Supported languages.
const (
	English Language = "English"
	French  Language = "French"
	Spanish Language = "Spanish"
)

// Supported proficiency levels.
const (
	Beginner     Proficiency = "Beginner"
	Intermediate Proficiency = "Intermediate"
	Advanced     Proficiency = "Advanced"
)

// Selection is the navigation input routed into the conversation view.
type Selection struct {
	Language    Language    `json:"language" yaml:"language"`
	Proficiency Proficiency `json:"proficiency" yaml:"proficiency"`
}

// Settings is derived from a Selection once per mount.
type Settings struct {
	Language   Language `json:"language"`
	LocaleCode string   `json:"locale"`
	Prompt     string   `json:"prompt"`
}

// LanguageEntry is one row of the language table.
type LanguageEntry struct {
	Name   Language `yaml:"name" json:"name"`
	Locale string   `yaml:"locale" json:"locale"`
	Prompt string   `yaml:"prompt" json:"-"`
}

// ProficiencyEntry is one row of the proficiency table.
type ProficiencyEntry struct {
	Name   Proficiency `yaml:"name" json:"name"`
	Prompt string      `yaml:"prompt" json:"-"`
}

type document struct {
	Languages     []LanguageEntry    `yaml:"languages"`
	Proficiencies []ProficiencyEntry `yaml:"proficiencies"`
}

// Catalog holds the immutable lookup tables.
type Catalog struct {
	languages     []LanguageEntry
	proficiencies []ProficiencyEntry
	byLanguage    map[Language]LanguageEntry
	byLevel       map[Proficiency]ProficiencyEntry
}

//go:embed catalog.yaml
var defaultYAML []byte

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc.Languages, doc.Proficiencies)
}

// New builds a catalog from explicit tables. Names must be unique and non-empty.
func New(languages []LanguageEntry, proficiencies []ProficiencyEntry) (*Catalog, error) {
	c := &Catalog{
		languages:     append([]LanguageEntry(nil), languages...),
		proficiencies: append([]ProficiencyEntry(nil), proficiencies...),
		byLanguage:    make(map[Language]LanguageEntry, len(languages)),
		byLevel:       make(map[Proficiency]ProficiencyEntry, len(proficiencies)),
	}
	for _, l := range c.languages {
		if l.Name == "" {
			return nil, fmt.Errorf("catalog: language entry without name")
		}
		if _, dup := c.byLanguage[l.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate language %q", l.Name)
		}
		c.byLanguage[l.Name] = l
	}
	for _, p := range c.proficiencies {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog: proficiency entry without name")
		}
		if _, dup := c.byLevel[p.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate proficiency %q", p.Name)
		}
		c.byLevel[p.Name] = p
	}
	return c, nil
}

// Derive maps a selection to its settings. A nil selection or unknown values
// contribute empty code and prompt fragments; no error is raised.
func (c *Catalog) Derive(sel *Selection) Settings {
	if sel == nil {
		return Settings{}
	}

	settings := Settings{Language: sel.Language}
	if l, ok := c.byLanguage[sel.Language]; ok {
		settings.LocaleCode = l.Locale
		settings.Prompt += l.Prompt
	}
	if p, ok := c.byLevel[sel.Proficiency]; ok {
		settings.Prompt += p.Prompt
	}
	return settings
}

// Languages returns the language table in declaration order.
func (c *Catalog) Languages() []LanguageEntry {
	return append([]LanguageEntry(nil), c.languages...)
}

// Proficiencies returns the proficiency table in declaration order.
func (c *Catalog) Proficiencies() []ProficiencyEntry {
	return append([]ProficiencyEntry(nil), c.proficiencies...)
}

// Locale returns the locale code for a language, or "" when unknown.
func (c *Catalog) Locale(lang Language) string {
	return c.byLanguage[lang].Locale
}
