package generic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/browser"
	"github.com/brogergvhs/mangacrawl/internal/ui"
)

// fakePage serves canned HTML per URL and scripted answers to Evaluate.
type fakePage struct {
	mu sync.Mutex

	docs    map[string]string
	current string

	navigations []string
	clicks      []int
	// onClick moves the page to another document; nil makes Click fail.
	onClick func(nth int) (string, error)
	// lateSwap keeps the old document after Click until the next
	// WaitForPredicate poll, like a site that re-renders after an XHR.
	lateSwap   bool
	pending    string
	predicates []string

	// scrollY returns the offset after the nth scroll step (0-based).
	scrollY     func(step int) float64
	scrollSteps int

	snapshot imageSnapshot
	evalErr  error
	// hang makes every Evaluate block until its context ends.
	hang bool

	predicate browser.WaitResult
	closed    bool
}

func newFakePage(docs map[string]string) *fakePage {
	return &fakePage{docs: docs}
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navigations = append(p.navigations, url)
	if _, ok := p.docs[url]; !ok {
		return fmt.Errorf("%w: %s: net::ERR_NAME_NOT_RESOLVED", browser.ErrNavigation, url)
	}
	p.current = url

	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string, out any) error {
	p.mu.Lock()
	hang := p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var result any
	switch {
	case strings.Contains(script, "scrollBy"):
		if p.scrollY == nil {
			return errors.New("no scroll script")
		}
		result = p.scrollY(p.scrollSteps)
		p.scrollSteps++
	case strings.Contains(script, "querySelectorAll"):
		if p.evalErr != nil {
			return p.evalErr
		}
		result = p.snapshot
	default:
		return fmt.Errorf("unexpected script %q", script)
	}

	if out == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}

func (p *fakePage) WaitForSelector(context.Context, string, time.Duration) browser.WaitResult {
	return browser.WaitFound
}

func (p *fakePage) WaitForPredicate(_ context.Context, expr string, _ time.Duration) browser.WaitResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.predicates = append(p.predicates, expr)
	if p.pending != "" {
		p.current, p.pending = p.pending, ""
		return browser.WaitFound
	}

	return p.predicate
}

func (p *fakePage) WaitForNetworkIdle(context.Context, time.Duration, time.Duration) browser.WaitResult {
	return browser.WaitTimedOut
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.docs[p.current]
	if !ok {
		return "", errors.New("no document loaded")
	}

	return doc, nil
}

func (p *fakePage) Click(_ context.Context, _ string, nth int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clicks = append(p.clicks, nth)
	if p.onClick == nil {
		return errors.New("nothing to click")
	}

	next, err := p.onClick(nth)
	if err != nil {
		return err
	}
	if p.lateSwap {
		p.pending = next
		return nil
	}
	p.current = next

	return nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// fakeDriver hands out the same page and remembers the options it was
// opened with.
type fakeDriver struct {
	page   *fakePage
	opened []browser.PageOptions
}

func (d *fakeDriver) OpenPage(_ context.Context, opts browser.PageOptions) (browser.Page, error) {
	d.opened = append(d.opened, opts)
	return d.page, nil
}

func (d *fakeDriver) Close() error {
	return nil
}

func testProfile() Profile {
	return Profile{
		Name:          "Example",
		Patterns:      []string{`^https://example\.test/series/`},
		QuickCheck:    true,
		ChapterLinks:  "ul.chapters li a.chapter",
		ChapterMeta:   "span",
		Title:         "h1.title",
		Cover:         "img.cover",
		Description:   "div.summary",
		DeclaredTotal: "p.count",
		Pagination:    "nav.pager a",
		ActivePage:    "nav.pager a.active",
		Images:        "div.reader img",
		MinImageWidth: 100,
	}
}

func testOptions() Options {
	return Options{
		NavigationTimeout: time.Second,
		SelectorTimeout:   time.Millisecond,
		IdleTime:          time.Millisecond,
		IdleTimeout:       time.Millisecond,
		CrawlTimeout:      5 * time.Second,
		MaxPages:          20,
		Scroll: ScrollPolicy{
			Step:        500,
			Interval:    time.Millisecond,
			StableSteps: 3,
			Timeout:     time.Second,
		},
		ReadyTimeout: time.Millisecond,
	}
}

func newTestScraper(page *fakePage, p Profile, opts Options) (*Scraper, *fakeDriver, *browser.Manager) {
	d := &fakeDriver{page: page}
	m := browser.NewManager(d, browser.ManagerOptions{MaxPages: 1, AcquireTimeout: time.Second}, ui.Nop())

	s, err := NewScraper(p, m, opts, ui.Nop())
	if err != nil {
		panic(err)
	}

	return s, d, m
}

// listing renders a chapter list page. Each chapter is "number|href".
func listing(title string, pager string, chapters ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>` + title + ` - Example</title></head><body>`)
	b.WriteString(`<h1 class="title">` + title + `</h1>`)
	b.WriteString(`<img class="cover" src="//cdn.example.test/covers/1.jpg">`)
	b.WriteString(`<div class="summary"> A story. </div>`)
	b.WriteString(`<ul class="chapters">`)
	for _, c := range chapters {
		num, href, _ := strings.Cut(c, "|")
		fmt.Fprintf(&b, `<li><a class="chapter" href="%s">Chapter %s</a><span>%d pages</span><span>2 days ago</span><span>Team</span></li>`,
			href, num, 20)
	}
	b.WriteString(`</ul>`)
	b.WriteString(`<nav class="pager">` + pager + `</nav>`)
	b.WriteString(`</body></html>`)

	return b.String()
}
