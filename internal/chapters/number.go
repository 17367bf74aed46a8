package chapters

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reURLChapter  = regexp.MustCompile(`(?i)chapter-(\d+(?:\.\d+)?)`)
	reTextChapter = regexp.MustCompile(`(?i)\bch(?:apter)?\.?\s*(\d+(?:\.\d+)?)`)
	reLeadingNum  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
)

// ParseNumber derives a chapter number from a link. Rules run in order and
// the first match wins:
//  1. a chapter-<n> token in the URL path
//  2. "Ch. <n>" / "Chapter <n>" in the text
//  3. a leading number in the text
//
// Text matches directly followed by another digit are rejected.
func ParseNumber(href, text string) (float64, bool) {
	if n, ok := matchURLChapter(href); ok {
		return n, true
	}
	if n, ok := matchGuarded(reTextChapter, text); ok {
		return n, true
	}
	if n, ok := matchGuarded(reLeadingNum, text); ok {
		return n, true
	}

	return 0, false
}

func matchURLChapter(href string) (float64, bool) {
	p := href
	if u, err := url.Parse(strings.TrimSpace(href)); err == nil && u.Path != "" {
		p = u.Path
	}

	m := reURLChapter.FindStringSubmatch(p)
	if m == nil {
		return 0, false
	}

	return parseFloat(m[1])
}

// matchGuarded tries every match of re in s and returns the first one whose
// number is not immediately followed by a digit.
func matchGuarded(re *regexp.Regexp, s string) (float64, bool) {
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		end := loc[3]
		if end < len(s) && isDigit(s[end]) {
			continue
		}
		if n, ok := parseFloat(s[loc[2]:end]); ok {
			return n, true
		}
	}

	return 0, false
}

func parseFloat(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
