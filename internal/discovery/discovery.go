// Package discovery finds candidate job-detail links on source listing pages.
package discovery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// DefaultMaxLinks bounds how many links are followed per source per run.
const DefaultMaxLinks = 10

// LinkHints mark anchors and containers that usually hold job notices.
var LinkHints = []string{"notification", "vacancy", "recruitment", "jobs", "career", "employment"}

// PathKeywords are the stems a discovered URL's path must contain.
var PathKeywords = []string{"notification", "vacanc", "recruit", "job", "career", "employ"}

// structuralSelectors are tried in order; earlier selectors win discovery order.
var structuralSelectors = []string{
	".notification a[href]", ".notifications a[href]",
	".vacancy a[href]", ".vacancies a[href]",
	".recruitment a[href]", ".latest-jobs a[href]", ".jobs a[href]",
	".career a[href]", ".careers a[href]",
	"#notifications a[href]", "#recruitment a[href]",
	"a[href*='notification']", "a[href*='vacanc']", "a[href*='recruit']",
	"a[href*='job']", "a[href*='career']", "a[href*='employ']",
}

// Discoverer extracts job links from listing pages.
type Discoverer struct {
	maxLinks int
	logger   *zap.Logger
}

// New constructs a Discoverer. A non-positive maxLinks uses DefaultMaxLinks.
func New(maxLinks int, logger *zap.Logger) *Discoverer {
	if maxLinks <= 0 {
		maxLinks = DefaultMaxLinks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{maxLinks: maxLinks, logger: logger.Named("discovery")}
}

// Discover returns up to maxLinks absolute, normalized, de-duplicated job
// links from page in discovery order.
func (d *Discoverer) Discover(page jobs.Page, source jobs.Source) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		d.logger.Debug("Unparseable listing page", zap.String("source", source.Name), zap.Error(err))
		return nil
	}
	baseRaw := page.URL
	if baseRaw == "" {
		baseRaw = source.BaseURL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return nil
	}
	self, _ := NormalizeURL(base.String())

	var (
		out  []string
		seen = map[string]struct{}{}
	)
	add := func(href string) bool {
		link, ok := resolveJobLink(base, href)
		if !ok || link == self {
			return false
		}
		if _, dup := seen[link]; dup {
			return false
		}
		seen[link] = struct{}{}
		out = append(out, link)
		return len(out) >= d.maxLinks
	}

	for _, sel := range structuralSelectors {
		done := false
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			done = add(href)
			return !done
		})
		if done {
			return out
		}
	}

	// Anchors whose visible text carries a hint, in document order.
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasHint(s.Text()) {
			return true
		}
		href, _ := s.Attr("href")
		return !add(href)
	})
	return out
}

func resolveJobLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Hostname() == "" || !hasPathKeyword(abs.Path) {
		return "", false
	}
	link, err := NormalizeURL(abs.String())
	if err != nil {
		return "", false
	}
	return link, true
}

func hasPathKeyword(path string) bool {
	lower := strings.ToLower(path)
	for _, kw := range PathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasHint(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range LinkHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
