package helpers

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	blockBoundary = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li|/h[1-6]|/blockquote)\s*>`)
	excessBreaks  = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// StrictHTMLPolicy returns a shared bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeHTMLStrict removes every HTML tag from s and trims it. Entities
// produced by the policy are decoded so the result is plain text.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(StrictHTMLPolicy().Sanitize(s)))
}

// PlainText converts an article body into the plain text that gets chunked.
// Block-level closing tags become line breaks so paragraph structure survives
// tag stripping; runs of blank lines collapse to a single paragraph break.
func PlainText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blockBoundary.ReplaceAllString(s, "$0\n")
	s = SanitizeHTMLStrict(s)
	s = trailingSpace.ReplaceAllString(s, "\n")
	return excessBreaks.ReplaceAllString(s, "\n\n")
}
