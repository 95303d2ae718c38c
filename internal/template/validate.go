package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// Validate checks that a template is well formed: it has an ID and domain,
// every field name is known, every selector parses and every pattern compiles.
func Validate(tmpl jobs.ExtractionTemplate) error {
	if strings.TrimSpace(tmpl.ID) == "" {
		return fmt.Errorf("%w: id is required", jobs.ErrInvalidTemplate)
	}
	if strings.TrimSpace(tmpl.Domain) == "" {
		return fmt.Errorf("%w: template %s: domain is required", jobs.ErrInvalidTemplate, tmpl.ID)
	}
	if len(tmpl.Fields) == 0 {
		return fmt.Errorf("%w: template %s: no field rules", jobs.ErrInvalidTemplate, tmpl.ID)
	}
	for field, rule := range tmpl.Fields {
		if _, err := jobs.ParseField(string(field)); err != nil {
			return fmt.Errorf("%w: template %s: %v", jobs.ErrInvalidTemplate, tmpl.ID, err)
		}
		if len(rule.Selectors) == 0 && rule.Pattern == "" {
			return fmt.Errorf("%w: template %s: field %s has neither selectors nor pattern", jobs.ErrInvalidTemplate, tmpl.ID, field)
		}
		for _, sel := range rule.Selectors {
			if _, err := cascadia.ParseGroup(sel); err != nil {
				return fmt.Errorf("%w: template %s: field %s selector %q: %v", jobs.ErrInvalidTemplate, tmpl.ID, field, sel, err)
			}
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("%w: template %s: field %s pattern: %v", jobs.ErrInvalidTemplate, tmpl.ID, field, err)
			}
		}
	}
	return nil
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
