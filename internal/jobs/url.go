package jobs

import (
	"net/url"
	"strings"
)

// ValidateURL accepts only absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return &MalformedURLError{URL: rawURL, Reason: "empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return &MalformedURLError{URL: rawURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &MalformedURLError{URL: rawURL, Reason: "scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return &MalformedURLError{URL: rawURL, Reason: "missing host"}
	}
	return nil
}
