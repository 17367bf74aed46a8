package generic

import (
	"context"
	"errors"
	"reflect"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/brogergvhs/mangacrawl/internal/providers"
	"github.com/brogergvhs/mangacrawl/internal/ui"
)

const chapterURL = "https://example.test/series/x/chapter-3"

func readerSnapshot() imageSnapshot {
	return imageSnapshot{
		URL: chapterURL,
		Items: []imageCandidate{
			{Src: "//img.example.test/p/1.webp", Width: 800},
			{Src: "/images/loading.gif", Lazy: []string{"/p/2.webp", "", ""}, Width: 800},
			{Src: "", Lazy: []string{"", "", "https://img.example.test/p/3.webp"}},
			{Src: "//img.example.test/p/1.webp", Width: 800},
			{Src: "https://cdn.example.test/avatars/u1.png", Width: 800},
			{Src: "https://img.example.test/icons/share.png", Width: 24},
			{Src: "data:image/gif;base64,R0lGOD", Srcset: "/p/4.webp 1x, /p/4@2x.webp 2x", Width: 800},
			{Src: "data:image/gif;base64,R0lGOD"},
		},
	}
}

func TestImageCollector(t *testing.T) {
	base := mustParse(t, chapterURL)
	col := newImageCollector(mustCompile(t, testProfile()), base, ui.Nop())

	for _, c := range readerSnapshot().Items {
		col.add(c)
	}

	want := []providers.Image{
		{Index: 1, URL: "https://img.example.test/p/1.webp"},
		{Index: 2, URL: "https://example.test/p/2.webp"},
		{Index: 3, URL: "https://img.example.test/p/3.webp"},
		{Index: 4, URL: "https://example.test/p/4.webp"},
	}
	if got := col.Finalize(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Finalize:\n got  %+v\n want %+v", got, want)
	}
}

func TestImageCollectorIndicesAreContiguous(t *testing.T) {
	col := newImageCollector(mustCompile(t, testProfile()), mustParse(t, chapterURL), ui.Nop())

	urls := []string{"/a.jpg", "/b.jpg", "/a.jpg", "/c.jpg", "/b.jpg", "/d.jpg"}
	for _, u := range urls {
		col.add(imageCandidate{Src: u})
	}

	seen := map[string]bool{}
	for i, img := range col.Finalize() {
		if img.Index != i+1 {
			t.Fatalf("image %d has index %d", i, img.Index)
		}
		if seen[img.URL] {
			t.Fatalf("duplicate url %s", img.URL)
		}
		seen[img.URL] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 images, got %d", len(seen))
	}
}

func TestCandidatesFromDocument(t *testing.T) {
	doc, err := parseDocument(`<main>
		<img src="/logo.png" width="40">
		<img data-src="/p/1.jpg" src="/spinner.gif" width="720">
	</main>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := candidatesFromDocument(doc, []string{"div.reader img", "main img"})
	if len(got) != 2 {
		t.Fatalf("expected the fallback selector to match 2 images, got %d", len(got))
	}
	if got[1].Width != 720 || got[1].Lazy[0] != "/p/1.jpg" {
		t.Fatalf("unexpected candidate %+v", got[1])
	}

	if got := candidatesFromDocument(doc, []string{"div.reader img"}); got != nil {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestScraper_GetChapterImages(t *testing.T) {
	Convey("Given a reader page that renders lazily", t, func() {
		page := newFakePage(map[string]string{chapterURL: `<html><body><div class="reader"></div></body></html>`})
		page.scrollY = func(step int) float64 { return float64(min(step, 4) * 500) }
		page.snapshot = readerSnapshot()
		s, d, m := newTestScraper(page, testProfile(), testOptions())

		Convey("When GetChapterImages() is called", func() {
			images, err := s.GetChapterImages(context.Background(), chapterURL)

			Convey("Then the ordered page images are returned", func() {
				So(err, ShouldBeNil)
				So(images, ShouldHaveLength, 4)
				So(images[0].URL, ShouldEqual, "https://img.example.test/p/1.webp")
				So(images[3].Index, ShouldEqual, 4)
			})

			Convey("And the page was opened without interception and released", func() {
				So(d.opened, ShouldHaveLength, 1)
				So(d.opened[0].BlockResources, ShouldBeFalse)
				So(m.Open(), ShouldEqual, 0)
			})
		})

		Convey("When the live query fails", func() {
			page.evalErr = errors.New("execution context was destroyed")
			page.docs[chapterURL] = `<html><body><div class="reader">
				<img src="/p/1.jpg"><img src="/p/2.jpg">
			</div></body></html>`

			images, err := s.GetChapterImages(context.Background(), chapterURL)

			Convey("Then the document snapshot is used instead", func() {
				So(err, ShouldBeNil)
				So(images, ShouldResemble, []providers.Image{
					{Index: 1, URL: "https://example.test/p/1.jpg"},
					{Index: 2, URL: "https://example.test/p/2.jpg"},
				})
			})
		})
	})

	Convey("Given a profile that keeps interception on reader pages", t, func() {
		blocked := false
		prof := testProfile()
		prof.CleanImagePage = &blocked

		page := newFakePage(map[string]string{chapterURL: `<html></html>`})
		page.scrollY = func(int) float64 { return 0 }
		s, d, _ := newTestScraper(page, prof, testOptions())

		Convey("When GetChapterImages() is called", func() {
			images, err := s.GetChapterImages(context.Background(), chapterURL)

			Convey("Then a blocking page is used and nothing found is not an error", func() {
				So(err, ShouldBeNil)
				So(images, ShouldBeEmpty)
				So(d.opened[0].BlockResources, ShouldBeTrue)
			})
		})
	})
}

func TestImageCollectorConfiguredSite(t *testing.T) {
	// a profile from the config file that sets neither width nor markers
	p := testProfile()
	p.MinImageWidth = 0
	col := newImageCollector(mustCompile(t, p), mustParse(t, chapterURL), ui.Nop())

	cands := []imageCandidate{
		{Src: "https://img.example.test/icons/share.png", Width: 32},
		{Src: "https://img.example.test/uploading/loading-screen/01.jpg", Width: 800},
		{Src: "https://img.example.test/p/02.jpg?v=loading", Width: 800},
		{Src: "https://img.example.test/static/loading.gif", Lazy: []string{"/p/03.jpg"}, Width: 800},
		{Src: "/assets/Spinner-64.svg?x=1"},
	}
	for _, c := range cands {
		col.add(c)
	}

	want := []providers.Image{
		{Index: 1, URL: "https://img.example.test/uploading/loading-screen/01.jpg"},
		{Index: 2, URL: "https://img.example.test/p/02.jpg?v=loading"},
		{Index: 3, URL: "https://example.test/p/03.jpg"},
	}
	if got := col.Finalize(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Finalize:\n got  %+v\n want %+v", got, want)
	}
}

func TestLastSegment(t *testing.T) {
	tests := map[string]string{
		"https://a.test/x/loading.gif?v=2": "loading.gif",
		"/p/1.jpg#frag":                    "1.jpg",
		"page.png":                         "page.png",
		"https://a.test/dir/":              "dir",
	}
	for in, want := range tests {
		if got := lastSegment(in); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
