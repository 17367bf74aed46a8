package generic

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

var lazyAttrs = []string{"data-src", "data-lazy-src", "data-original"}

// imageCandidate is one image element as the reader page rendered it.
type imageCandidate struct {
	Src    string   `json:"src"`
	Lazy   []string `json:"lazy"`
	Srcset string   `json:"srcset"`
	// Width is the rendered width in CSS pixels, 0 when unknown.
	Width float64 `json:"width"`
}

type imageSnapshot struct {
	URL   string           `json:"url"`
	Items []imageCandidate `json:"items"`
}

// collectScript returns the candidates of the first selector that matches
// anything, together with the document URL.
func collectScript(selectors []string) string {
	sel, _ := json.Marshal(selectors)
	lazy, _ := json.Marshal(lazyAttrs)

	return fmt.Sprintf(`(() => {
	for (const sel of %s) {
		let els;
		try { els = Array.from(document.querySelectorAll(sel)); } catch (e) { continue; }
		if (els.length === 0) continue;
		return {url: location.href, items: els.map(el => ({
			src: el.getAttribute("src") || "",
			lazy: %s.map(a => el.getAttribute(a) || ""),
			srcset: el.getAttribute("srcset") || "",
			width: Math.round(el.getBoundingClientRect().width) || el.naturalWidth || 0,
		}))};
	}
	return {url: location.href, items: []};
})()`, sel, lazy)
}

// readyExpression is true once sel matches at least one image and every
// match has a source and a decoded bitmap.
func readyExpression(sel string) string {
	q, _ := json.Marshal(sel)

	return fmt.Sprintf(`(() => {
	const imgs = Array.from(document.querySelectorAll(%s));
	return imgs.length > 0 && imgs.every(i => (i.currentSrc || i.src) && i.naturalWidth > 0);
})()`, q)
}

// candidatesFromDocument is the snapshot fallback when the live query
// fails. Widths come from the width attribute and are usually unknown.
func candidatesFromDocument(doc *goquery.Document, selectors []string) []imageCandidate {
	for _, sel := range selectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}

		out := make([]imageCandidate, 0, found.Length())
		found.Each(func(_ int, img *goquery.Selection) {
			c := imageCandidate{
				Src:    img.AttrOr("src", ""),
				Srcset: img.AttrOr("srcset", ""),
			}
			for _, a := range lazyAttrs {
				c.Lazy = append(c.Lazy, img.AttrOr(a, ""))
			}
			if w, err := strconv.ParseFloat(img.AttrOr("width", ""), 64); err == nil {
				c.Width = w
			}
			out = append(out, c)
		})

		return out
	}

	return nil
}

type imageCollector struct {
	prof  *compiledProfile
	base  *url.URL
	log   Logger
	items []providers.Image
	seen  map[string]bool
}

func newImageCollector(p *compiledProfile, base *url.URL, log Logger) *imageCollector {
	return &imageCollector{
		prof:  p,
		base:  base,
		log:   log,
		items: make([]providers.Image, 0, 64),
		seen:  make(map[string]bool),
	}
}

// add keeps the candidate unless it is a placeholder, a known non-page
// asset, narrower than the profile minimum or already collected.
func (c *imageCollector) add(cand imageCandidate) bool {
	src := c.effectiveSource(cand)
	if src == "" {
		return false
	}

	u := resolveURL(c.base, src)
	for _, re := range c.prof.skip {
		if re.MatchString(u) {
			c.log.Debugf("skipping non-page image: %s", u)
			return false
		}
	}

	if minWidth := float64(c.prof.minWidth); cand.Width > 0 && cand.Width < minWidth {
		c.log.Debugf("skipping %.0fpx wide image: %s", cand.Width, u)
		return false
	}

	if c.seen[u] {
		return false
	}
	c.seen[u] = true
	c.items = append(c.items, providers.Image{Index: len(c.items) + 1, URL: u})

	return true
}

// effectiveSource prefers src, then the lazy-load attributes, then the
// first srcset entry. Placeholders never win.
func (c *imageCollector) effectiveSource(cand imageCandidate) string {
	options := make([]string, 0, len(cand.Lazy)+2)
	options = append(options, cand.Src)
	options = append(options, cand.Lazy...)
	options = append(options, firstSrcset(cand.Srcset))

	for _, s := range options {
		s = strings.TrimSpace(s)
		if s != "" && !c.isPlaceholder(s) {
			return s
		}
	}

	return ""
}

// isPlaceholder reports inline sources and URLs whose file name carries a
// placeholder marker. Directories and series slugs are not looked at.
func (c *imageCollector) isPlaceholder(src string) bool {
	ls := strings.ToLower(src)
	if strings.HasPrefix(ls, "data:") || strings.HasPrefix(ls, "javascript:") || strings.HasPrefix(ls, "blob:") {
		return true
	}

	name := lastSegment(ls)
	for _, p := range c.prof.placeholders {
		if p != "" && strings.Contains(name, strings.ToLower(p)) {
			return true
		}
	}

	return false
}

// lastSegment is the final path segment of a possibly relative URL,
// without query or fragment.
func lastSegment(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	src = strings.TrimRight(src, "/")

	return src[strings.LastIndexByte(src, '/')+1:]
}

func (c *imageCollector) Finalize() []providers.Image {
	return c.items
}

func firstSrcset(srcset string) string {
	for p := range strings.SplitSeq(srcset, ",") {
		if parts := strings.Fields(p); len(parts) > 0 {
			return parts[0]
		}
	}

	return ""
}
