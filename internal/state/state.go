// Package state remembers, per listing URL, which chapter links a quick
// check has already seen.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/bbolt"
	"github.com/samber/lo"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

const bucket = "listings"

type Entry struct {
	URL       string    `json:"url"`
	Known     []string  `json:"known"`
	Latest    *float64  `json:"latest,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

type Store struct {
	mu sync.Mutex
	kv gokv.Store
}

// Open opens (or creates) the bbolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}

	kv, err := bbolt.NewStore(bbolt.Options{
		BucketName: bucket,
		Path:       path,
	})
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}

	return New(kv), nil
}

// New wraps any gokv store, such as an in-memory syncmap.
func New(kv gokv.Store) *Store {
	return &Store{kv: kv}
}

func key(listURL string) string {
	return strings.TrimRight(strings.TrimSpace(listURL), "/")
}

func (s *Store) Get(listURL string) (Entry, bool, error) {
	var e Entry
	found, err := s.kv.Get(key(listURL), &e)
	if err != nil {
		return Entry{}, false, fmt.Errorf("state: get %s: %w", listURL, err)
	}

	return e, found, nil
}

// Known returns the chapter URLs recorded for listURL, nil when there are
// none.
func (s *Store) Known(listURL string) ([]string, error) {
	e, _, err := s.Get(listURL)
	if err != nil {
		return nil, err
	}

	return e.Known, nil
}

// Remember adds the first-page chapter URLs of res to the entry of listURL
// and raises Latest when res saw a higher number.
func (s *Store) Remember(listURL string, res *providers.QuickCheckResult, now time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, _, err := s.Get(listURL)
	if err != nil {
		return Entry{}, err
	}

	e.URL = key(listURL)
	e.CheckedAt = now
	if res != nil {
		urls := lo.Map(res.FirstPageChapters, func(c providers.RawChapter, _ int) string { return c.URL })
		e.Known = lo.Uniq(append(e.Known, urls...))

		if res.LatestChapter != nil && (e.Latest == nil || *res.LatestChapter > *e.Latest) {
			latest := *res.LatestChapter
			e.Latest = &latest
		}
	}

	if err := s.kv.Set(key(listURL), e); err != nil {
		return Entry{}, fmt.Errorf("state: set %s: %w", listURL, err)
	}

	return e, nil
}

func (s *Store) Forget(listURL string) error {
	return s.kv.Delete(key(listURL))
}

func (s *Store) Close() error {
	return s.kv.Close()
}
