package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const pollInterval = 200 * time.Millisecond

var blockedTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage: true,
	network.ResourceTypeMedia: true,
	network.ResourceTypeFont:  true,
}

type ChromeOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// ChromeDriver runs one Chrome process; every page is a tab of it.
type ChromeDriver struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewChromeDriver(opts ChromeOptions) (*ChromeDriver, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(1280, 1800),
	)
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}

	d := &ChromeDriver{}
	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), flags...)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	// first Run starts the browser; it must not carry a timeout
	if err := chromedp.Run(d.browserCtx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return d, nil
}

func (d *ChromeDriver) OpenPage(ctx context.Context, opts PageOptions) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx)

	p := &chromePage{
		ctx:          tabCtx,
		cancel:       cancel,
		inflight:     map[network.RequestID]struct{}{},
		lastActivity: time.Now(),
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	actions := []chromedp.Action{network.Enable()}
	if opts.BlockResources {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}))
	}

	// the first Run on a tab context creates the target, so it runs on the
	// tab context itself and the caller's deadline closes the tab instead
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	return p, nil
}

func (d *ChromeDriver) Close() error {
	var err error
	if d.browserCtx != nil {
		err = chromedp.Cancel(d.browserCtx)
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func (p *chromePage) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.track(e.RequestID, true)
	case *network.EventLoadingFinished:
		p.track(e.RequestID, false)
	case *network.EventLoadingFailed:
		p.track(e.RequestID, false)
	case *fetch.EventRequestPaused:
		// event handlers must not block; answer from a goroutine
		go p.intercept(e)
	}
}

func (p *chromePage) track(id network.RequestID, started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if started {
		p.inflight[id] = struct{}{}
	} else {
		delete(p.inflight, id)
	}
	p.lastActivity = time.Now()
}

func (p *chromePage) intercept(e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ectx := cdp.WithExecutor(p.ctx, c.Target)

	if blockedTypes[e.ResourceType] {
		_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
		return
	}
	_ = fetch.ContinueRequest(e.RequestID).Do(ectx)
}

// bind derives an action context from the tab that also ends with ctx and,
// when timeout is positive, after timeout. Cancelling it aborts the action
// without closing the tab.
func (p *chromePage) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		rctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		rctx, cancel = context.WithCancel(p.ctx)
	}

	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	rctx, cancel := p.bind(ctx, timeout)
	defer cancel()

	err := chromedp.Run(rctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}

	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	rctx, cancel := p.bind(ctx, 0)
	defer cancel()

	return chromedp.Run(rctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) WaitResult {
	rctx, cancel := p.bind(ctx, timeout)
	defer cancel()

	err := chromedp.Run(rctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	return waitOutcome(ctx, err)
}

func (p *chromePage) WaitForPredicate(ctx context.Context, expression string, timeout time.Duration) WaitResult {
	script := "Boolean(" + expression + ")"

	return pollUntil(ctx, timeout, func(pctx context.Context) (bool, error) {
		var ok bool
		err := p.Evaluate(pctx, script, &ok)
		return ok, err
	})
}

func (p *chromePage) WaitForNetworkIdle(ctx context.Context, idle, timeout time.Duration) WaitResult {
	return pollUntil(ctx, timeout, func(context.Context) (bool, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		return len(p.inflight) == 0 && time.Since(p.lastActivity) >= idle, nil
	})
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	rctx, cancel := p.bind(ctx, 0)
	defer cancel()

	var html string
	if err := chromedp.Run(rctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	return html, nil
}

func (p *chromePage) Click(ctx context.Context, selector string, nth int) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}

	script := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, sel, nth)

	var clicked bool
	if err := p.Evaluate(ctx, script, &clicked); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, nth, err)
	}
	if !clicked {
		return fmt.Errorf("click %s[%d]: element not found", selector, nth)
	}

	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	rctx, cancel := p.bind(ctx, 0)
	defer cancel()

	var loc string
	if err := chromedp.Run(rctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}

	return loc, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pollUntil calls check every pollInterval until it reports true, ctx ends
// or timeout passes. Check errors count as "not yet". check gets a context
// that ends with the timeout, so a stuck check cannot outlive it.
func pollUntil(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) WaitResult {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if ok, err := check(pctx); err == nil && ok {
			return WaitFound
		}

		if ctx.Err() != nil {
			return WaitCanceled
		}
		select {
		case <-pctx.Done():
			if ctx.Err() != nil {
				return WaitCanceled
			}
			return WaitTimedOut
		case <-tick.C:
		}
	}
}

func waitOutcome(ctx context.Context, err error) WaitResult {
	switch {
	case err == nil:
		return WaitFound
	case ctx.Err() != nil:
		return WaitCanceled
	default:
		return WaitTimedOut
	}
}
