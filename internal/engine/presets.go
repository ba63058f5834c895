package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"task-automator-api/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetCatalog is a read-only library of rule templates.
type PresetCatalog struct {
	templates []domain.RuleTemplate
	byKey     map[string]int
}

// LoadPresets parses a YAML list of templates. Every template must be a
// valid rule and keys must be unique.
func LoadPresets(data []byte) (*PresetCatalog, error) {
	// YAML is decoded generically and re-encoded as JSON so action params go
	// through the same typed decoding as the API.
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding presets: %w", err)
	}
	var templates []domain.RuleTemplate
	if err := json.Unmarshal(buf, &templates); err != nil {
		return nil, fmt.Errorf("decoding presets: %w", err)
	}

	c := &PresetCatalog{templates: templates, byKey: make(map[string]int, len(templates))}
	for i, t := range templates {
		if t.Key == "" {
			return nil, fmt.Errorf("preset %d: missing key", i)
		}
		if _, dup := c.byKey[t.Key]; dup {
			return nil, fmt.Errorf("preset %q: duplicate key", t.Key)
		}
		if err := domain.ValidateRuleSpec(t.RuleSpec); err != nil {
			return nil, fmt.Errorf("preset %q: %w", t.Key, err)
		}
		c.byKey[t.Key] = i
	}
	return c, nil
}

// DefaultPresets returns the built-in catalog. It panics if the embedded
// file is broken, which the tests guard against.
func DefaultPresets() *PresetCatalog {
	c, err := LoadPresets(presetsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// List returns copies of all templates in file order.
func (c *PresetCatalog) List() []domain.RuleTemplate {
	out := make([]domain.RuleTemplate, len(c.templates))
	for i, t := range c.templates {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Get returns a copy of the template with the given key.
func (c *PresetCatalog) Get(key string) (domain.RuleTemplate, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return domain.RuleTemplate{}, false
	}
	return cloneTemplate(c.templates[i]), true
}

func cloneTemplate(t domain.RuleTemplate) domain.RuleTemplate {
	t.RuleSpec = t.RuleSpec.Clone()
	return t
}
