package collector

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/datasethub/datasethub/internal/dataset"
)

// feedPage is what the fake blog serves for one ?paged=N request.
// A non-empty raw body is served verbatim instead of RSS, for blogs
// that answer past their last page with a plain HTML document.
type feedPage struct {
	title string
	items []feedItem
	raw   string
}

type feedItem struct {
	title string
	body  string
}

func rssBody(p feedPage) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title><link>http://blog.test</link>", p.title)
	for _, it := range p.items {
		fmt.Fprintf(&b, "<item><title>%s</title><link>http://blog.test/%s</link>", it.title, it.title)
		fmt.Fprintf(&b, "<content:encoded><![CDATA[%s]]></content:encoded></item>", it.body)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

// feedServer serves pages[n-1] for ?paged=n and repeats the last page
// for anything beyond, the way feed servers that never 404 do. It
// records which page numbers were requested.
func feedServer(t *testing.T, pages []feedPage) (*httptest.Server, func() []int) {
	t.Helper()

	var mu sync.Mutex
	var requested []int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		n, err := strconv.Atoi(r.URL.Query().Get("paged"))
		if err != nil || n < 1 {
			n = 1
		}
		mu.Lock()
		requested = append(requested, n)
		mu.Unlock()

		page := pages[len(pages)-1]
		if n <= len(pages) {
			page = pages[n-1]
		}
		if page.raw != "" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, page.raw)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody(page))
	}))
	t.Cleanup(ts.Close)

	return ts, func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), requested...)
	}
}

func collectAll(t *testing.T, w *WordpressBlog) []*dataset.Entry {
	t.Helper()
	var got []*dataset.Entry
	err := w.FetchEntries(func(e *dataset.Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	return got
}

func TestFetchEntriesStopsOnRepeatedTitle(t *testing.T) {
	ts, _ := feedServer(t, []feedPage{
		{title: "Blog - Page 1", items: []feedItem{
			{title: "Post A", body: `<p>Body of post A</p><div class="share">junk</div>`},
			{title: "Post B", body: `<p>Body of post B</p>`},
		}},
		{title: "Blog - Page 2", items: []feedItem{
			{title: "Post C", body: `<p>Body of post C</p>`},
		}},
		// Page 3 answers with page 2's title again: pagination is
		// exhausted, pages 1-2 contribute.
	})

	w, err := NewWordpressBlog(ts.URL, []string{`<div class="share">.*?</div>`}, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	got := collectAll(t, w)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	first := got[0]
	if first.Title != "Post A" {
		t.Fatalf("title = %q, want %q", first.Title, "Post A")
	}
	if first.URL != ts.URL {
		t.Fatalf("url = %q, want the blog url %q", first.URL, ts.URL)
	}
	if first.Source != Slug(ts.URL) {
		t.Fatalf("source = %q, want %q", first.Source, Slug(ts.URL))
	}
	if first.DatePublished != "n/a" {
		t.Fatalf("date_published = %q, want n/a", first.DatePublished)
	}
	if !strings.HasPrefix(first.Text, "Post A\n\n") {
		t.Fatalf("text should start with title and blank line: %q", first.Text)
	}
	if strings.Contains(first.Text, "junk") {
		t.Fatalf("strip pattern not applied: %q", first.Text)
	}
	if err := first.VerifyID(); err != nil {
		t.Fatalf("VerifyID: %v", err)
	}

	if v, ok := first.Field("paged_url"); !ok || v != w.feedURL+"?paged=1" {
		t.Fatalf("paged_url = %q (%v)", v, ok)
	}
	if v, _ := got[2].Field("paged_url"); v != w.feedURL+"?paged=2" {
		t.Fatalf("third entry paged_url = %q", v)
	}
}

func TestFetchEntriesEmptyPageWithFreshTitleContinues(t *testing.T) {
	ts, _ := feedServer(t, []feedPage{
		{title: "Blog - Page 1"}, // no items, but a fresh title
		{title: "Blog - Page 2", items: []feedItem{
			{title: "Post A", body: `<p>hello</p>`},
		}},
	})

	w, err := NewWordpressBlog(ts.URL, nil, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	got := collectAll(t, w)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Title != "Post A" {
		t.Fatalf("title = %q", got[0].Title)
	}
}

func TestFetchEntriesStopsOnMissingTitle(t *testing.T) {
	ts, _ := feedServer(t, []feedPage{
		{title: "Blog - Page 1", items: []feedItem{
			{title: "Post A", body: `<p>hello</p>`},
		}},
		{title: ""}, // no feed title: end of pagination
	})

	w, err := NewWordpressBlog(ts.URL, nil, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	if got := collectAll(t, w); len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestFetchEntriesStopsOnUnparseablePage(t *testing.T) {
	ts, _ := feedServer(t, []feedPage{
		{title: "Blog - Page 1", items: []feedItem{
			{title: "Post A", body: `<p>hello</p>`},
		}},
		// Past the last page the server answers with an HTML
		// document, not a feed: end of pagination, not a failure.
		{raw: "<!DOCTYPE html><html><body>not found</body></html>"},
	})

	w, err := NewWordpressBlog(ts.URL, nil, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	if got := collectAll(t, w); len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestFetchEntriesSkipsDonePages(t *testing.T) {
	ts, requested := feedServer(t, []feedPage{
		{title: "Blog - Page 1", items: []feedItem{{title: "Post A", body: `<p>a</p>`}}},
		{title: "Blog - Page 2", items: []feedItem{{title: "Post B", body: `<p>b</p>`}}},
	})

	w, err := NewWordpressBlog(ts.URL, nil, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	// Seed the ledger as if page 1 was collected on a prior run.
	dw, err := w.Dataset().NewWriter(false)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	seed := &dataset.Entry{Text: "Post A\n\na"}
	seed.SetExtra("paged_url", w.feedURL+"?paged=1")
	if err := seed.AddID(); err != nil {
		t.Fatalf("AddID: %v", err)
	}
	if err := dw.Write(seed); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := collectAll(t, w)
	if len(got) != 1 || got[0].Title != "Post B" {
		t.Fatalf("resume run got %+v, want just Post B", got)
	}
	for _, n := range requested() {
		if n == 1 {
			t.Fatalf("page 1 was fetched again on resume: %v", requested())
		}
	}
}

func TestFetchEntriesPropagatesHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	w, err := NewWordpressBlog(ts.URL, nil, 5, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}

	err = w.FetchEntries(func(*dataset.Entry) error { return nil })
	if err == nil {
		t.Fatalf("FetchEntries should fail on HTTP 500")
	}
}

func TestTargetsHonorMaxPages(t *testing.T) {
	w, err := NewWordpressBlog("https://blog.example.com", nil, 3, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}
	targets := w.Targets()
	if len(targets) != 3 {
		t.Fatalf("len(targets) = %d, want 3", len(targets))
	}
	if targets[0] != "https://blog.example.com/feed?paged=1" {
		t.Fatalf("targets[0] = %q", targets[0])
	}

	d, err := NewWordpressBlog("https://blog.example.com", nil, 0, t.TempDir())
	if err != nil {
		t.Fatalf("NewWordpressBlog: %v", err)
	}
	if len(d.Targets()) != DefaultMaxPages {
		t.Fatalf("default targets = %d, want %d", len(d.Targets()), DefaultMaxPages)
	}
}
