package collector

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/datasethub/datasethub/internal/dataset"
	"github.com/mmcdole/gofeed"
)

const (
	// DefaultMaxPages caps the ?paged=N walk for blogs that never
	// stop serving pages.
	DefaultMaxPages = 2000

	wpClientTimeout = 30 * time.Second

	// Browser-like UA because some blogs block generic bots.
	wpUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// WordpressBlog scrapes one blog through its paginated syndication
// feed (url/feed?paged=N). The paged URL is the dedup key, so an
// interrupted run resumes at the first page it never finished.
type WordpressBlog struct {
	url      string
	feedURL  string
	name     string
	maxPages int

	cleaner *Cleaner
	ds      *dataset.Dataset
	parser  *gofeed.Parser
	client  *http.Client
}

// NewWordpressBlog configures a scraper for the blog at url. strip
// lists regexes removed from each post body before text extraction;
// maxPages <= 0 selects DefaultMaxPages. The dataset name is a
// filesystem-safe slug of the url.
func NewWordpressBlog(url string, strip []string, maxPages int, dataPath string) (*WordpressBlog, error) {
	cleaner, err := NewCleaner(strip)
	if err != nil {
		return nil, fmt.Errorf("wordpress %s: %w", url, err)
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	name := Slug(url)
	ds := dataset.New(name, dataPath)
	ds.DoneKey = "paged_url"

	return &WordpressBlog{
		url:      url,
		feedURL:  strings.TrimRight(url, "/") + "/feed",
		name:     name,
		maxPages: maxPages,
		cleaner:  cleaner,
		ds:       ds,
		parser:   gofeed.NewParser(),
		client:   &http.Client{Timeout: wpClientTimeout},
	}, nil
}

func (w *WordpressBlog) Name() string {
	return w.name
}

func (w *WordpressBlog) Dataset() *dataset.Dataset {
	return w.ds
}

// Targets enumerates every paged feed URL up to the pagination
// ceiling. The done-set filter decides which of them still need
// fetching.
func (w *WordpressBlog) Targets() []string {
	targets := make([]string, 0, w.maxPages)
	for page := 1; page <= w.maxPages; page++ {
		targets = append(targets, fmt.Sprintf("%s?paged=%d", w.feedURL, page))
	}
	return targets
}

// FetchEntries walks unprocessed feed pages in order and emits one
// entry per post. Feed servers past their last page tend to answer
// with the same content again, or with a plain HTML page, instead of
// a 404; so a response that isn't a feed at all, or whose feed title
// is missing or repeats the previous page's title, ends the walk
// cleanly. A page with no items but a fresh title does not: only
// missing metadata or the title heuristic stops iteration. Known
// fragility: two real consecutive pages with identical titles
// truncate the run early. Transport failures and non-200 statuses
// are real errors and abort the run.
func (w *WordpressBlog) FetchEntries(emit func(*dataset.Entry) error) error {
	targets, err := w.ds.Unprocessed(w.Targets())
	if err != nil {
		return fmt.Errorf("%s: read done set: %w", w.name, err)
	}

	lastTitle := ""
	for _, pagedURL := range targets {
		log.Printf("%s: fetching %s", w.name, pagedURL)
		feed, err := w.fetchPage(pagedURL)
		if err != nil {
			return fmt.Errorf("%s: %w", w.name, err)
		}

		if feed == nil || feed.Title == "" || feed.Title == lastTitle {
			log.Printf("%s: no fresh feed page at %s, reached the end of pagination", w.name, pagedURL)
			return nil
		}
		lastTitle = feed.Title

		for _, item := range feed.Items {
			body := item.Content
			if body == "" {
				body = item.Description
			}
			text := item.Title + "\n\n" + w.cleaner.Clean(body)

			e := &dataset.Entry{
				Text:          text,
				URL:           w.url,
				Title:         firstLine(text),
				Source:        w.name,
				DatePublished: "n/a",
			}
			e.SetExtra("paged_url", pagedURL)
			if err := e.AddID(); err != nil {
				return fmt.Errorf("%s: %w", w.name, err)
			}
			if err := emit(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WordpressBlog) fetchPage(pagedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequest(http.MethodGet, pagedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pagedURL, err)
	}
	req.Header.Set("User-Agent", wpUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pagedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pagedURL, resp.StatusCode)
	}

	// A 200 response that isn't a parseable feed is how servers
	// answer past the last page; report it as a nil feed so the
	// caller ends pagination instead of failing the run.
	feed, err := w.parser.Parse(resp.Body)
	if err != nil {
		log.Printf("%s: %s is not a feed document: %v", w.name, pagedURL, err)
		return nil, nil
	}
	return feed, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
