package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

type fileDocument struct {
	Templates []jobs.ExtractionTemplate `yaml:"templates"`
}

// LoadFile reads extraction templates from a YAML document of the form
// `templates: [{id, name, domain, active, fields: {title: {selectors, pattern}}}]`.
// Every template is validated before any is returned.
func LoadFile(path string) ([]jobs.ExtractionTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML template document.
func Parse(data []byte) ([]jobs.ExtractionTemplate, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode template file: %w", err)
	}
	for _, tmpl := range doc.Templates {
		if err := Validate(tmpl); err != nil {
			return nil, err
		}
	}
	return doc.Templates, nil
}
