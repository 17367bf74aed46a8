package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps URLs to adapters through the patterns each adapter claims.
// Adapters are tried in registration order.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byName   map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(a.Name())
	if _, ok := r.byName[key]; ok {
		return fmt.Errorf("register %q: %w", a.Name(), ErrDuplicateAdapterName)
	}

	r.byName[key] = a
	r.adapters = append(r.adapters, a)

	return nil
}

// Match returns the first adapter with a pattern matching rawURL.
func (r *Registry) Match(rawURL string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.adapters {
		for _, p := range a.Patterns() {
			if p.MatchString(rawURL) {
				return a, nil
			}
		}
	}

	return nil, fmt.Errorf("%s: %w", rawURL, ErrUnsupportedURL)
}

func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byName[strings.ToLower(name)]
	return a, ok
}

// Adapters returns the registered adapters sorted by name.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]Adapter(nil), r.adapters...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name()) < strings.ToLower(out[j].Name())
	})

	return out
}
