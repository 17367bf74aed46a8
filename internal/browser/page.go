// Package browser wraps a headless browser behind a small page interface and
// hands pages out through a bounded session manager.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNavigation marks a page that failed to load in time. Always fatal
	// for the operation that hit it.
	ErrNavigation = errors.New("navigation failed")
	// ErrAcquire marks a page session that could not be opened.
	ErrAcquire = errors.New("page session unavailable")
	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("session manager closed")
)

// WaitResult is the outcome of a tolerant wait. Callers carry on with
// whatever is on the page regardless of the value.
type WaitResult int

const (
	WaitFound WaitResult = iota
	WaitTimedOut
	WaitCanceled
)

func (r WaitResult) Found() bool {
	return r == WaitFound
}

func (r WaitResult) String() string {
	switch r {
	case WaitFound:
		return "found"
	case WaitTimedOut:
		return "timed out"
	case WaitCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits for the document. Errors wrap ErrNavigation.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Evaluate runs script in the page and decodes its JSON result into out
	// (out may be nil).
	Evaluate(ctx context.Context, script string, out any) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) WaitResult
	// WaitForPredicate polls a JavaScript expression until it is truthy.
	WaitForPredicate(ctx context.Context, expression string, timeout time.Duration) WaitResult
	// WaitForNetworkIdle waits until no request has been in flight for idle.
	WaitForNetworkIdle(ctx context.Context, idle, timeout time.Duration) WaitResult
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Click clicks the nth (0-based) element matching selector.
	Click(ctx context.Context, selector string, nth int) error
	// URL is the address of the current document.
	URL(ctx context.Context) (string, error)
	Close() error
}

type PageOptions struct {
	// BlockResources aborts image, media and font requests.
	BlockResources bool
}

// Driver opens pages. Implementations must allow concurrent OpenPage calls.
type Driver interface {
	OpenPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}
