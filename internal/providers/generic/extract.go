package generic

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangacrawl/internal/chapters"
	"github.com/brogergvhs/mangacrawl/internal/providers"
)

var (
	reDeclaredTotal = regexp.MustCompile(`(?i)\bof\s+([\d,]+)\s+(?:items?|chapters?)`)
	reFirstInt      = regexp.MustCompile(`\d[\d,]*`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// listingMeta is what the first listing page says about the series.
type listingMeta struct {
	Title         string
	Cover         string
	Description   string
	DeclaredTotal int
}

func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// extractChapters returns one record per chapter anchor with a derivable
// number, in document order. Anchors without a number are skipped.
func extractChapters(doc *goquery.Document, base *url.URL, p *compiledProfile) []providers.RawChapter {
	out := []providers.RawChapter{}

	doc.Find(p.ChapterLinks).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		text := cleanText(a.Text())
		n, ok := chapters.ParseNumber(href, text)
		if !ok {
			return
		}

		title := text
		if title == "" {
			title = "Chapter " + providers.FormatNumber(n)
		}

		rec := providers.RawChapter{
			Number: n,
			Title:  title,
			URL:    resolveURL(base, href),
		}
		fillSiblingMeta(&rec, a, p.ChapterMeta)

		out = append(out, rec)
	})

	return out
}

// fillSiblingMeta reads the siblings that follow the anchor: page count,
// then upload time, then release group. Siblings without text do not count.
func fillSiblingMeta(rec *providers.RawChapter, a *goquery.Selection, filter string) {
	siblings := a.NextAll()
	if filter != "" {
		siblings = a.NextAllFiltered(filter)
	}

	var found []string
	siblings.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := cleanText(s.Text()); t != "" {
			found = append(found, t)
		}
		return len(found) < 3
	})

	if len(found) > 0 {
		rec.PageCount = firstInt(found[0])
	}
	if len(found) > 1 {
		rec.UploadedAt = found[1]
	}
	if len(found) > 2 {
		rec.ReleaseGroup = found[2]
	}
}

func extractMeta(doc *goquery.Document, base *url.URL, p *compiledProfile) listingMeta {
	var m listingMeta

	if p.Title != "" {
		m.Title = cleanText(doc.Find(p.Title).First().Text())
	}
	if m.Title == "" {
		m.Title = cleanText(doc.Find("title").First().Text())
	}

	if p.Cover != "" {
		img := doc.Find(p.Cover).First()
		src := firstAttr(img, "src", "data-src", "content", "href")
		if src != "" {
			m.Cover = resolveURL(base, src)
		}
	}

	if p.Description != "" {
		m.Description = strings.TrimSpace(doc.Find(p.Description).First().Text())
	}

	if p.DeclaredTotal != "" {
		m.DeclaredTotal = parseDeclaredTotal(doc.Find(p.DeclaredTotal).First().Text())
	}

	return m
}

// parseDeclaredTotal reads counts like "Showing 1 to 30 of 212 items",
// falling back to the first number when the "of N" form is absent.
func parseDeclaredTotal(text string) int {
	if m := reDeclaredTotal.FindStringSubmatch(text); m != nil {
		return atoiDigits(m[1])
	}

	return firstInt(text)
}

func firstInt(s string) int {
	return atoiDigits(reFirstInt.FindString(s))
}

func atoiDigits(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}

	return n
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// resolveURL makes href absolute against base. Protocol-relative and
// root-relative forms take base's scheme and host.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}

	return base.ResolveReference(u).String()
}

// Listing is the parsed form of one listing page.
type Listing struct {
	Title         string                 `json:"title"`
	Cover         string                 `json:"cover,omitempty"`
	Description   string                 `json:"description"`
	DeclaredTotal int                    `json:"declaredTotal,omitempty"`
	Chapters      []providers.RawChapter `json:"chapters"`
	// NextPage is the link a crawl would follow from this page, empty when
	// there is none or the control has to be clicked.
	NextPage string `json:"nextPage,omitempty"`
}

// ParseListing runs the profile's extraction over a saved listing page,
// taken to be the first page of the listing.
func ParseListing(p Profile, pageURL, html string) (*Listing, error) {
	c, err := p.compile()
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(html)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	base := parseBase(pageURL)
	meta := extractMeta(doc, base, c)

	l := &Listing{
		Title:         meta.Title,
		Cover:         meta.Cover,
		Description:   meta.Description,
		DeclaredTotal: meta.DeclaredTotal,
		Chapters:      extractChapters(doc, base, c),
	}
	if next, ok := findNextControl(doc, base, c, 1); ok {
		l.NextPage = next.Href
	}

	return l, nil
}
