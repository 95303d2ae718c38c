// Package extract turns fetched pages into raw field bags using template
// selectors, fallback text patterns and field heuristics, in that order.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/normalize"
)

// tier is one step of the per-field fallback chain. It returns "" when it
// could not produce a value.
type tier func(field jobs.Field, rule jobs.FieldRule, hasRule bool) string

// Extractor produces RawExtraction values from page content.
type Extractor struct {
	heuristics Heuristics
	logger     *zap.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New constructs an Extractor with the given heuristics.
func New(heuristics Heuristics, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heuristics.qualification == nil {
		heuristics = NewHeuristics(nil, nil)
	}
	return &Extractor{
		heuristics: heuristics,
		logger:     logger.Named("extract"),
		patterns:   make(map[string]*regexp.Regexp),
	}
}

// Extract applies tmpl to page. Missing fields are simply absent from the
// result; unparseable HTML yields an empty bag.
func (e *Extractor) Extract(page jobs.Page, tmpl jobs.ExtractionTemplate) jobs.RawExtraction {
	out := make(jobs.RawExtraction)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Debug("Unparseable page", zap.String("url", page.URL), zap.Error(err))
		return out
	}
	text := PageText(doc)
	base, _ := url.Parse(page.URL)

	chain := []tier{
		func(field jobs.Field, rule jobs.FieldRule, hasRule bool) string {
			if !hasRule {
				return ""
			}
			return selectorValue(doc, field, rule.Selectors, base)
		},
		func(_ jobs.Field, rule jobs.FieldRule, hasRule bool) string {
			if !hasRule || rule.Pattern == "" {
				return ""
			}
			return e.patternValue(rule.Pattern, text)
		},
		func(field jobs.Field, _ jobs.FieldRule, _ bool) string {
			return e.heuristics.apply(field, doc, text)
		},
	}

	for _, field := range jobs.AllFields {
		rule, hasRule := tmpl.Fields[field]
		if !hasRule && !HasHeuristic(field) {
			continue
		}
		for _, step := range chain {
			if v := step(field, rule, hasRule); v != "" {
				out[field] = v
				break
			}
		}
	}
	return out
}

// PageText strips script and style elements from doc and returns its visible
// text. Line breaks are kept so patterns can anchor on them.
func PageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template").Remove()
	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = normalize.CollapseSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func selectorValue(doc *goquery.Document, field jobs.Field, selectors []string, base *url.URL) string {
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		match := doc.Find(sel).First()
		if match.Length() == 0 {
			continue
		}
		if field == jobs.FieldApplyLink {
			if link := linkValue(match, base); link != "" {
				return link
			}
			continue
		}
		if v := normalize.CollapseSpace(match.Text()); v != "" {
			return v
		}
	}
	return ""
}

func linkValue(sel *goquery.Selection, base *url.URL) string {
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}

func (e *Extractor) patternValue(pattern, text string) string {
	re := e.compile(pattern)
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		for _, group := range m[1:] {
			if v := normalize.CollapseSpace(group); v != "" {
				return v
			}
		}
	}
	return normalize.CollapseSpace(m[0])
}

func (e *Extractor) compile(pattern string) *regexp.Regexp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.logger.Warn("Skipping invalid template pattern", zap.String("pattern", pattern), zap.Error(err))
	}
	e.patterns[pattern] = re
	return re
}
