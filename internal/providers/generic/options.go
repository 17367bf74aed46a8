package generic

import (
	"time"

	"github.com/brogergvhs/mangacrawl/internal/browser"
)

// Options are the timing knobs of the engine. Zero durations and counts are
// replaced by the defaults; a zero Delay means no pause between pages.
type Options struct {
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	IdleTime          time.Duration
	IdleTimeout       time.Duration
	// CrawlTimeout bounds a whole pagination crawl. Reaching it returns the
	// pages collected so far.
	CrawlTimeout time.Duration
	MaxPages     int
	Delay        browser.Delay

	Scroll       ScrollPolicy
	SettlePause  time.Duration
	ReadyTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 45 * time.Second,
		SelectorTimeout:   15 * time.Second,
		IdleTime:          500 * time.Millisecond,
		IdleTimeout:       10 * time.Second,
		CrawlTimeout:      10 * time.Minute,
		MaxPages:          200,
		Delay:             browser.Delay{Min: time.Second, Max: 3 * time.Second},
		Scroll:            DefaultScrollPolicy(),
		SettlePause:       1500 * time.Millisecond,
		ReadyTimeout:      15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()

	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = def.SelectorTimeout
	}
	if o.IdleTime <= 0 {
		o.IdleTime = def.IdleTime
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.CrawlTimeout <= 0 {
		o.CrawlTimeout = def.CrawlTimeout
	}
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.SettlePause < 0 {
		o.SettlePause = 0
	}
	o.Scroll = o.Scroll.withDefaults()

	return o
}
