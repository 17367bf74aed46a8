package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Handle is an acquired page. Release it through the Manager, or use
// WithPage so it is released on every exit path.
type Handle struct {
	Page
	ID    string
	Clean bool

	once sync.Once
}

type ManagerOptions struct {
	// MaxPages bounds the number of pages open at once.
	MaxPages int
	// AcquireTimeout bounds how long Acquire waits for a slot and for the
	// driver to open a page.
	AcquireTimeout time.Duration
}

// Manager hands out pages from a Driver, at most MaxPages at a time.
type Manager struct {
	driver Driver
	slots  chan struct{}
	opts   ManagerOptions
	log    Logger

	open   atomic.Int64
	closed atomic.Bool
}

func NewManager(d Driver, opts ManagerOptions, log Logger) *Manager {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = time.Minute
	}

	return &Manager{
		driver: d,
		slots:  make(chan struct{}, opts.MaxPages),
		opts:   opts,
		log:    log,
	}
}

// Acquire opens a page that blocks non-essential resources.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	return m.acquire(ctx, PageOptions{BlockResources: true})
}

// AcquireClean opens a page without request interception, for readers
// whose lazy loading depends on every request completing.
func (m *Manager) AcquireClean(ctx context.Context) (*Handle, error) {
	return m.acquire(ctx, PageOptions{})
}

func (m *Manager) acquire(ctx context.Context, opts PageOptions) (*Handle, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrAcquire, ErrClosed)
	}

	actx, cancel := context.WithTimeout(ctx, m.opts.AcquireTimeout)
	defer cancel()

	select {
	case m.slots <- struct{}{}:
	case <-actx.Done():
		return nil, fmt.Errorf("%w: waiting for a free page: %w", ErrAcquire, actx.Err())
	}

	page, err := m.driver.OpenPage(actx, opts)
	if err != nil {
		<-m.slots
		return nil, fmt.Errorf("%w: %w", ErrAcquire, err)
	}

	h := &Handle{
		Page:  page,
		ID:    uuid.NewString()[:8],
		Clean: !opts.BlockResources,
	}
	m.open.Add(1)
	m.log.Debugf("page %s acquired (clean=%t, open=%d)", h.ID, h.Clean, m.open.Load())

	return h, nil
}

// Release closes the page and frees its slot. Calling it twice is a no-op.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}

	h.once.Do(func() {
		if err := h.Page.Close(); err != nil {
			m.log.Warnf("page %s close: %v", h.ID, err)
		}
		m.open.Add(-1)
		<-m.slots
		m.log.Debugf("page %s released (open=%d)", h.ID, m.open.Load())
	})
}

// WithPage runs fn on a blocking page and releases it afterwards, including
// when fn returns an error or panics.
func (m *Manager) WithPage(ctx context.Context, fn func(ctx context.Context, h *Handle) error) error {
	h, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer m.Release(h)

	return fn(ctx, h)
}

// WithCleanPage is WithPage on a page without request interception.
func (m *Manager) WithCleanPage(ctx context.Context, fn func(ctx context.Context, h *Handle) error) error {
	h, err := m.AcquireClean(ctx)
	if err != nil {
		return err
	}
	defer m.Release(h)

	return fn(ctx, h)
}

// Open reports how many pages are currently acquired.
func (m *Manager) Open() int {
	return int(m.open.Load())
}

// Close stops handing out pages and shuts the driver down.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	return m.driver.Close()
}
