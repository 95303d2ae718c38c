package jobs

import "time"

// WildcardDomain marks the catch-all template used for unknown hosts.
const WildcardDomain = "*"

// FieldRule holds the structural selectors and fallback pattern for one field.
type FieldRule struct {
	Selectors []string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// ExtractionTemplate maps canonical fields to extraction rules for one domain.
type ExtractionTemplate struct {
	ID        string              `json:"id" yaml:"id"`
	Name      string              `json:"name" yaml:"name"`
	Domain    string              `json:"domain" yaml:"domain"`
	Fields    map[Field]FieldRule `json:"fields" yaml:"fields"`
	Active    bool                `json:"active" yaml:"active"`
	UpdatedAt time.Time           `json:"updated_at" yaml:"-"`
}

// IsWildcard reports whether the template applies to any domain.
func (t ExtractionTemplate) IsWildcard() bool {
	return t.Domain == WildcardDomain
}

// Clone returns a deep copy of the template.
func (t ExtractionTemplate) Clone() ExtractionTemplate {
	out := t
	out.Fields = make(map[Field]FieldRule, len(t.Fields))
	for f, rule := range t.Fields {
		rule.Selectors = append([]string(nil), rule.Selectors...)
		out.Fields[f] = rule
	}
	return out
}
