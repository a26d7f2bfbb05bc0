// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips dangerous markup from user-submitted rich
// text before it is stored. Blog posts arrive as HTML from the editor;
// everything else (titles, excerpts, comments) is treated as plain text.
package htmlsanitize

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy   *bluemonday.Policy
	richOnce     sync.Once
	strictPolicy *bluemonday.Policy
	strictOnce   sync.Once
)

func rich() *bluemonday.Policy {
	richOnce.Do(func() {
		richPolicy = bluemonday.UGCPolicy()
		richPolicy.AllowElements("u", "s", "sub", "sup", "mark", "figure", "figcaption")
		richPolicy.AllowAttrs("class").OnElements("p", "span", "figure", "img")
		richPolicy.AllowImages()
	})
	return richPolicy
}

func strict() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// RichText sanitizes editor HTML, keeping safe formatting and images.
func RichText(html string) string {
	if html == "" {
		return ""
	}
	return rich().Sanitize(html)
}

// PlainText strips all markup, returning only the text content. Used for
// titles, comment bodies, and anything rendered outside a rich-text view.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strict().Sanitize(s))
}

// Excerpt produces a plain-text excerpt of at most max runes from rich
// content, for list views that show a preview.
func Excerpt(html string, max int) string {
	text := PlainText(html)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// ToSafeHTML wraps already-sanitized content for direct template use.
func ToSafeHTML(sanitized string) template.HTML {
	return template.HTML(sanitized)
}
