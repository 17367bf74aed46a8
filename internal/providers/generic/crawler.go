package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/providers"
)

type stopReason int

const (
	stopNoNext stopReason = iota
	stopStalled
	stopMaxPages
	stopTimeout
)

func (r stopReason) String() string {
	switch r {
	case stopNoNext:
		return "no next page"
	case stopStalled:
		return "pagination stalled"
	case stopMaxPages:
		return "page limit reached"
	case stopTimeout:
		return "crawl timeout reached"
	default:
		return "unknown"
	}
}

type crawlResult struct {
	Meta    listingMeta
	Records []providers.RawChapter
	Pages   int
	Reason  stopReason
}

// crawl walks the listing page by page: load, extract, stall check, then
// advance through the next control or stop. Pages are strictly sequential.
// Only the first navigation and the caller's context are fatal; the crawl
// deadline ends the walk with what was collected.
func (s *Scraper) crawl(ctx context.Context, page browser.Page, listURL string) (*crawlResult, error) {
	if err := page.Navigate(ctx, listURL, s.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.CrawlTimeout)
	defer cancel()

	res := &crawlResult{Records: []providers.RawChapter{}}
	var prevFirst *float64

	for pageNo := 1; ; pageNo++ {
		s.settle(cctx, page)

		doc, current, err := s.snapshot(cctx, page, listURL)
		if err != nil {
			return s.stopOnDeadline(ctx, cctx, res, fmt.Errorf("read listing page %d: %w", pageNo, err))
		}
		base := parseBase(current, listURL)

		if pageNo == 1 {
			res.Meta = extractMeta(doc, base, s.prof)
		}

		recs := extractChapters(doc, base, s.prof)
		if len(recs) > 0 && prevFirst != nil && recs[0].Number == *prevFirst {
			s.log.Warnf("%s: page %d repeats page %d, stopping", s.prof.Name, pageNo, pageNo-1)
			res.Reason = stopStalled
			return res, nil
		}

		res.Records = append(res.Records, recs...)
		res.Pages = pageNo
		s.log.Debugf("%s: page %d: %d chapters", s.prof.Name, pageNo, len(recs))

		prevFirst = nil
		if len(recs) > 0 {
			prevFirst = &recs[0].Number
		}

		if pageNo >= s.opts.MaxPages {
			s.log.Warnf("%s: stopping after %d pages", s.prof.Name, pageNo)
			res.Reason = stopMaxPages
			return res, nil
		}

		next, ok := findNextControl(doc, base, s.prof, pageNo)
		if !ok {
			res.Reason = stopNoNext
			return res, nil
		}

		if err := s.opts.Delay.Wait(cctx); err != nil {
			return s.stopOnDeadline(ctx, cctx, res, err)
		}
		if err := s.activate(cctx, page, next, markerOf(doc, s.prof)); err != nil {
			return s.stopOnDeadline(ctx, cctx, res, err)
		}
	}
}

// settle waits for the listing to render. Both waits are tolerant.
func (s *Scraper) settle(ctx context.Context, page browser.Page) {
	if r := page.WaitForSelector(ctx, s.prof.ChapterLinks, s.opts.SelectorTimeout); !r.Found() {
		s.log.Debugf("%s: chapter links: %s", s.prof.Name, r)
	}
	if r := page.WaitForNetworkIdle(ctx, s.opts.IdleTime, s.opts.IdleTimeout); !r.Found() {
		s.log.Debugf("%s: network idle: %s", s.prof.Name, r)
	}
}

// snapshot parses the rendered document and reports its current URL,
// falling back to fallback when the driver cannot tell.
func (s *Scraper) snapshot(ctx context.Context, page browser.Page, fallback string) (*goquery.Document, string, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, "", err
	}

	doc, err := parseDocument(html)
	if err != nil {
		return nil, "", err
	}

	current, err := page.URL(ctx)
	if err != nil || current == "" {
		current = fallback
	}

	return doc, current, nil
}

// activate moves to the next page. A click returns before the site swaps the
// document, so it waits until the page no longer shows prev.
func (s *Scraper) activate(ctx context.Context, page browser.Page, next nextControl, prev pageMarker) error {
	if next.Href != "" {
		s.log.Debugf("%s: next page -> %s", s.prof.Name, next.Href)
		return page.Navigate(ctx, next.Href, s.opts.NavigationTimeout)
	}

	s.log.Debugf("%s: next page -> click %s[%d]", s.prof.Name, s.prof.Pagination, next.Nth)
	if err := page.Click(ctx, s.prof.Pagination, next.Nth); err != nil {
		return fmt.Errorf("%w: %w", browser.ErrNavigation, err)
	}

	if r := page.WaitForPredicate(ctx, prev.changed(s.prof), s.opts.NavigationTimeout); !r.Found() {
		s.log.Debugf("%s: page change after click: %s", s.prof.Name, r)
	}

	return nil
}

// pageMarker identifies a rendered listing page by the raw href of its first
// chapter link and the label of the active page.
type pageMarker struct {
	href   string
	active string
}

func markerOf(doc *goquery.Document, p *compiledProfile) pageMarker {
	m := pageMarker{href: doc.Find(p.ChapterLinks).First().AttrOr("href", "")}
	if p.ActivePage != "" {
		m.active = strings.TrimSpace(doc.Find(p.ActivePage).First().Text())
	}

	return m
}

// changed is a page expression that turns true once the document no longer
// shows m.
func (m pageMarker) changed(p *compiledProfile) string {
	js := func(v string) string {
		b, _ := json.Marshal(v)
		return string(b)
	}

	return fmt.Sprintf(`(() => {
		const link = document.querySelector(%s);
		const href = link ? (link.getAttribute("href") || "") : "";
		const sel = %s;
		const act = sel ? document.querySelector(sel) : null;
		const active = act ? act.textContent.trim() : "";
		return href !== %s || active !== %s;
	})()`, js(p.ChapterLinks), js(p.ActivePage), js(m.href), js(m.active))
}

// stopOnDeadline turns an error caused by the crawl deadline into a partial
// result. Anything else, including the caller's own cancellation, is
// returned as is.
func (s *Scraper) stopOnDeadline(ctx, cctx context.Context, res *crawlResult, err error) (*crawlResult, error) {
	if ctx.Err() == nil && cctx.Err() != nil {
		s.log.Warnf("%s: crawl timeout after %d pages, keeping partial results", s.prof.Name, res.Pages)
		res.Reason = stopTimeout
		return res, nil
	}

	return nil, err
}
