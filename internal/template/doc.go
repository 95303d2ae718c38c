// Package template owns the extraction-template registry: per-domain field
// rules, the catch-all wildcard template, and admin edits to both.
package template
