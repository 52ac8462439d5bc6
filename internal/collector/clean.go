package collector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Block-level closers and <br> become newlines before the markup
	// is dropped, so paragraph structure survives into the plain text.
	blockBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|h[1-6]|li|blockquote|pre|tr|figcaption)>`)
	anyTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	schemeRe     = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	unsafeRuneRe = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// Cleaner turns an HTML fragment into plain text after removing the
// source-specific patterns configured for the blog (share widgets,
// footers and similar boilerplate that the feed embeds in the body).
type Cleaner struct {
	strip []*regexp.Regexp
}

func NewCleaner(patterns []string) (*Cleaner, error) {
	strip := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("strip pattern %q: %w", p, err)
		}
		strip = append(strip, re)
	}
	return &Cleaner{strip: strip}, nil
}

func (c *Cleaner) Clean(html string) string {
	for _, re := range c.strip {
		html = re.ReplaceAllString(html, "")
	}
	html = blockBreakRe.ReplaceAllString(html, "\n")

	var text string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		text = anyTagRe.ReplaceAllString(html, "")
	} else {
		text = doc.Text()
	}
	return collapseWhitespace(text)
}

// collapseWhitespace trims line edges and squeezes runs of blank
// lines down to a single paragraph break.
func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

// Slug derives a filesystem-safe dataset name from a URL: scheme and
// leading www dropped, everything outside [a-z0-9._-] replaced.
func Slug(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	s = schemeRe.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "www.")
	s = strings.Trim(s, "/")
	s = unsafeRuneRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "dataset"
	}
	return s
}
