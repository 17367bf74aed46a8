package generic

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	rePageQuery = regexp.MustCompile(`(?i)[?&](?:page|p|pg)=(\d+)`)
	rePagePath  = regexp.MustCompile(`(?i)/page[/-](\d+)(?:/|$)`)
)

// nextControl is the pagination element to activate for the next page.
type nextControl struct {
	// Nth is the position of the element within the pagination selector.
	Nth int
	// Href is the absolute target when the control is a real link; empty
	// when the control has to be clicked.
	Href string
	// Target is the page index the control leads to, 0 when unknown.
	Target int
}

// findNextControl looks for an enabled "next" control on the current page.
// A control qualifies when its target index is past the active page, or
// when its target is unknown, the page shows an active indicator and the
// control is not a link back to the current document. current is the
// crawler's own page counter, used when the page has no active indicator.
func findNextControl(doc *goquery.Document, base *url.URL, p *compiledProfile, current int) (nextControl, bool) {
	if p.Pagination == "" {
		return nextControl{}, false
	}

	active, hasActive := activePage(doc, p)
	if !hasActive {
		active = current
	}

	var (
		found nextControl
		ok    bool
	)
	doc.Find(p.Pagination).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !matchesNextLabel(s, p.nextLabel) || isDisabled(s) {
			return true
		}

		href := strings.TrimSpace(s.AttrOr("href", ""))
		target := targetPage(s, href)

		switch {
		case target > 0:
			if target <= active {
				return true
			}
		case !hasActive:
			// non-numeric pagination without an active indicator
			return true
		case isSelfReference(base, href):
			return true
		}

		found = nextControl{Nth: i, Target: target}
		if isNavigable(href) {
			found.Href = resolveURL(base, href)
		}
		ok = true

		return false
	})

	return found, ok
}

func activePage(doc *goquery.Document, p *compiledProfile) (int, bool) {
	if p.ActivePage == "" {
		return 0, false
	}

	s := doc.Find(p.ActivePage).First()
	if s.Length() == 0 {
		return 0, false
	}

	if n := atoiDigits(s.AttrOr("data-page", "")); n > 0 {
		return n, true
	}
	if n := firstInt(s.Text()); n > 0 {
		return n, true
	}

	return 0, false
}

func matchesNextLabel(s *goquery.Selection, re *regexp.Regexp) bool {
	for _, label := range []string{cleanText(s.Text()), s.AttrOr("aria-label", ""), s.AttrOr("title", ""), s.AttrOr("rel", "")} {
		if label != "" && re.MatchString(label) {
			return true
		}
	}

	return false
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if s.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	if s.HasClass("disabled") {
		return true
	}

	return s.Parent().HasClass("disabled")
}

// targetPage resolves the page index a control leads to, 0 when unknown.
func targetPage(s *goquery.Selection, href string) int {
	if n := atoiDigits(s.AttrOr("data-page", "")); n > 0 {
		return n
	}
	if m := rePageQuery.FindStringSubmatch(href); m != nil {
		return atoiDigits(m[1])
	}
	if m := rePagePath.FindStringSubmatch(href); m != nil {
		return atoiDigits(m[1])
	}

	return 0
}

func isNavigable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}

	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// isSelfReference reports links that only point back at the current
// document: bare fragments and the current URL itself.
func isSelfReference(base *url.URL, href string) bool {
	if href == "" {
		return false
	}
	if strings.HasPrefix(href, "#") {
		return true
	}
	if base == nil {
		return false
	}

	target, err := base.Parse(href)
	if err != nil {
		return false
	}
	target.Fragment = ""

	cur := *base
	cur.Fragment = ""

	return target.String() == cur.String()
}
