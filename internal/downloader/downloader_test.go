package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/ui"
)

type recordingProgress struct {
	mu    sync.Mutex
	done  int
	total int
	bytes int64
	final bool
}

func (p *recordingProgress) Update(done, total int, bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done, p.total, p.bytes = done, total, bytes
}

func (p *recordingProgress) MarkDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.final = true
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.RetryWait = 5 * time.Millisecond
	opts.RetryMaxWait = 20 * time.Millisecond
	opts.Timeout = 5 * time.Second
	return opts
}

func imagesAt(base string, names ...string) []providers.Image {
	out := make([]providers.Image, len(names))
	for i, n := range names {
		out[i] = providers.Image{Index: i + 1, URL: base + "/" + n}
	}
	return out
}

func TestDownloadImagesConcurrently(t *testing.T) {
	var referers sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referers.Store(r.URL.Path, r.Header.Get("Referer"))
		switch r.URL.Path {
		case "/a.png":
			w.Header().Set("Content-Type", "image/png")
			fmt.Fprint(w, "png-bytes")
		case "/b":
			w.Header().Set("Content-Type", "image/webp")
			fmt.Fprint(w, "webp")
		case "/c.JPEG":
			w.Header().Set("Content-Type", "image/jpeg")
			fmt.Fprint(w, "jpeg")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	ph := &recordingProgress{}
	d := New(srv.Client(), fastOptions(), ui.Nop())

	files, n, err := d.DownloadImagesConcurrently(context.Background(),
		imagesAt(srv.URL, "a.png", "b", "c.JPEG", "spinner.gif"), dir, "https://site.example/ch/1", 3, ph)
	if err != nil {
		t.Fatalf("DownloadImagesConcurrently: %v", err)
	}

	want := []string{
		filepath.Join(dir, "page_001.png"),
		filepath.Join(dir, "page_002.webp"),
		filepath.Join(dir, "page_003.jpg"),
	}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", files, want)
	}
	if n != int64(len("png-bytes")+len("webp")+len("jpeg")) {
		t.Fatalf("bytes = %d", n)
	}

	b, err := os.ReadFile(want[0])
	if err != nil || !bytes.Equal(b, []byte("png-bytes")) {
		t.Fatalf("page_001 = %q, %v", b, err)
	}

	if _, ok := referers.Load("/spinner.gif"); ok {
		t.Fatalf("disallowed extension should not be requested")
	}
	if ref, _ := referers.Load("/a.png"); ref != "https://site.example/ch/1" {
		t.Fatalf("Referer = %v", ref)
	}

	if ph.done != 4 || ph.total != 4 || ph.bytes != n || !ph.final {
		t.Fatalf("progress = %+v", ph)
	}
}

func TestDownloadRetriesTooManyRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	d := New(srv.Client(), fastOptions(), ui.Nop())
	files, _, err := d.DownloadImagesConcurrently(context.Background(), imagesAt(srv.URL, "p.jpg"), t.TempDir(), "", 1, nil)
	if err != nil {
		t.Fatalf("DownloadImagesConcurrently: %v", err)
	}
	if len(files) != 1 || hits.Load() != 3 {
		t.Fatalf("files=%v hits=%d", files, hits.Load())
	}
}

func TestDownloadBrokenImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			fmt.Fprint(w, "ok")
		case "/html.jpg":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>blocked</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	images := imagesAt(srv.URL, "ok.jpg", "html.jpg", "missing.jpg")

	d := New(srv.Client(), fastOptions(), ui.Nop())
	files, _, err := d.DownloadImagesConcurrently(context.Background(), images, t.TempDir(), "", 2, nil)
	if !errors.Is(err, ErrBrokenImages) {
		t.Fatalf("err = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}

	opts := fastOptions()
	opts.SkipBroken = true
	d = New(srv.Client(), opts, ui.Nop())
	files, _, err = d.DownloadImagesConcurrently(context.Background(), images, t.TempDir(), "", 2, nil)
	if err != nil || len(files) != 1 {
		t.Fatalf("skip broken: files=%v err=%v", files, err)
	}
}

func TestDownloadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "x")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(srv.Client(), fastOptions(), ui.Nop())
	_, _, err := d.DownloadImagesConcurrently(ctx, imagesAt(srv.URL, "1.jpg", "2.jpg", "3.jpg"), t.TempDir(), "", 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"3", 3 * time.Second},
		{"", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tt.header != "" {
				w.Header().Set("Retry-After", tt.header)
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		d := New(srv.Client(), Options{RetryCount: 0}, ui.Nop())
		resp, err := d.client.R().Get(srv.URL)
		srv.Close()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}

		got, err := retryAfter(d.client, resp)
		if err != nil || got != tt.want {
			t.Fatalf("retryAfter(%q) = %s, %v; want %s", tt.header, got, err, tt.want)
		}
	}
}

func TestURLExt(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a/001.WEBP?token=x": "webp",
		"https://cdn.example.com/a/001":              "",
		"/rel/page.png#frag":                         "png",
	}
	for in, want := range tests {
		if got := urlExt(in); got != want {
			t.Fatalf("urlExt(%q) = %q, want %q", in, got, want)
		}
	}
}
