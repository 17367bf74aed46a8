// Package downloader fetches chapter images to disk with bounded
// parallelism and retries.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/brogergvhs/mangacrawl/internal/providers"
)

var ErrBrokenImages = errors.New("some images failed to download")

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type Options struct {
	SkipBroken bool
	// AllowExt lists the image extensions kept, without dots. Images whose
	// extension is known and not listed are skipped. Empty keeps everything.
	AllowExt []string

	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Timeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		AllowExt:     []string{"jpg", "jpeg", "png", "webp"},
		RetryCount:   3,
		RetryWait:    time.Second,
		RetryMaxWait: 30 * time.Second,
		Timeout:      30 * time.Second,
	}
}

type Downloader struct {
	client *resty.Client
	opts   Options
	log    Logger
}

// New wraps hc, which carries the user agent, cookies and the Cloudflare
// transport, in a retrying resty client.
func New(hc *http.Client, opts Options, log Logger) *Downloader {
	def := DefaultOptions()
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = def.RetryWait
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = def.RetryMaxWait
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	client := resty.NewWithClient(hc).
		SetLogger(log).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetRetryAfter(retryAfter).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		SetHeaders(map[string]string{
			"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		})

	return &Downloader{client: client, opts: opts, log: log}
}

// retryAfter honours Retry-After on 429 and 503 responses, in seconds or as
// an HTTP date. A zero duration lets resty use its backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil {
		return 0, nil
	}
	if resp.StatusCode() != http.StatusTooManyRequests && resp.StatusCode() != http.StatusServiceUnavailable {
		return 0, nil
	}

	v := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if v == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0), nil
	}

	return 0, nil
}

type chapterState struct {
	mu          sync.Mutex
	doneImages  int
	totalImages int
	doneBytes   int64
	errs        []error
}

func (cs *chapterState) finish(ph Progress, err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err != nil {
		cs.errs = append(cs.errs, err)
	}
	cs.doneImages++
	ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
}

func (cs *chapterState) addBytes(ph Progress, delta int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.doneBytes += delta
	ph.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
}

// DownloadImagesConcurrently stores images in folder as page_NNN.ext, NNN
// being the image index, with at most maxParallel requests in flight. The
// returned files are in index order. Failed images are an error unless
// SkipBroken is set.
func (d *Downloader) DownloadImagesConcurrently(
	ctx context.Context,
	images []providers.Image,
	folder string,
	referer string,
	maxParallel int,
	ph Progress,
) ([]string, int64, error) {
	if ph == nil {
		ph = nopProgress{}
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, 0, err
	}

	total := len(images)
	maxParallel = max(1, min(maxParallel, total))

	cs := &chapterState{totalImages: total}
	ph.Update(0, total, 0)

	files := make([]string, total)
	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			img := images[i]

			if ext := urlExt(img.URL); ext != "" && !d.allowed(ext) {
				d.log.Debugf("skipping image %d (%s)", img.Index, ext)
				cs.finish(ph, nil)
				continue
			}

			var last int64
			progress := func(done int64) {
				if delta := done - last; delta > 0 {
					last = done
					cs.addBytes(ph, delta)
				}
			}

			file, err := d.download(ctx, img, folder, referer, progress)
			if err != nil {
				cs.finish(ph, fmt.Errorf("image %d: %w", img.Index, err))
				continue
			}

			files[i] = file
			cs.finish(ph, nil)
		}
	}

	wg.Add(maxParallel)
	for range maxParallel {
		go worker()
	}

	canceled := false
	for i := range images {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		select {
		case <-ctx.Done():
			canceled = true
		case jobs <- i:
		}
		if canceled {
			break
		}
	}
	close(jobs)
	wg.Wait()

	files = slices.DeleteFunc(files, func(f string) bool { return f == "" })

	if canceled {
		return files, cs.doneBytes, ctx.Err()
	}
	ph.MarkDone()

	if len(cs.errs) > 0 {
		for _, err := range cs.errs {
			d.log.Warnf("%v", err)
		}
		if !d.opts.SkipBroken {
			return files, cs.doneBytes, fmt.Errorf("%w: %d/%d (use --skip-broken to continue)", ErrBrokenImages, len(cs.errs), total)
		}
	}

	return files, cs.doneBytes, nil
}

func (d *Downloader) download(
	ctx context.Context,
	img providers.Image,
	folder, referer string,
	progress func(done int64),
) (string, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Referer", referer).
		SetDoNotParseResponse(true).
		Get(img.URL)
	if err != nil {
		return "", err
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode())
	}

	ext := urlExt(img.URL)
	if ct := resp.Header().Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mt, "image/") {
			return "", fmt.Errorf("unexpected MIME: %s", ct)
		}
		if ext == "" {
			ext = strings.TrimPrefix(mt, "image/")
		}
	}
	if ext == "" {
		ext = "jpg"
	}
	if ext == "jpeg" {
		ext = "jpg"
	}

	out := filepath.Join(folder, fmt.Sprintf("page_%03d.%s", img.Index, ext))
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}

	written, err := copyWithProgress(f, body, progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return "", err
	}

	if cl := resp.RawResponse.ContentLength; cl > 0 && written < cl {
		_ = os.Remove(out)
		return "", fmt.Errorf("short body: %d of %d bytes", written, cl)
	}

	return out, nil
}

func (d *Downloader) allowed(ext string) bool {
	if len(d.opts.AllowExt) == 0 {
		return true
	}
	if ext == "jpeg" {
		ext = "jpg"
	}

	for _, a := range d.opts.AllowExt {
		a = strings.ToLower(strings.TrimPrefix(a, "."))
		if a == "jpeg" {
			a = "jpg"
		}
		if a == ext {
			return true
		}
	}
	return false
}

// urlExt is the lower-case extension of the URL path, without the dot.
func urlExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}
