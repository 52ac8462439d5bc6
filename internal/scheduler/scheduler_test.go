package scheduler

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/datasethub/datasethub/internal/dataset"
)

// fakeScraper emits a fixed batch of entries, optionally failing
// partway through.
type fakeScraper struct {
	ds      *dataset.Dataset
	texts   []string
	failAt  int
	fetches int
}

func newFakeScraper(t *testing.T, texts []string, failAt int) *fakeScraper {
	t.Helper()
	return &fakeScraper{
		ds:     dataset.New("fake", t.TempDir()),
		texts:  texts,
		failAt: failAt,
	}
}

func (f *fakeScraper) Name() string              { return "fake" }
func (f *fakeScraper) Dataset() *dataset.Dataset { return f.ds }

func (f *fakeScraper) FetchEntries(emit func(*dataset.Entry) error) error {
	f.fetches++
	for i, text := range f.texts {
		if f.failAt > 0 && i == f.failAt {
			return errors.New("source went away")
		}
		e := &dataset.Entry{Text: text, Title: strings.SplitN(text, "\n", 2)[0], Source: "fake"}
		if err := e.AddID(); err != nil {
			return err
		}
		if err := emit(e); err != nil {
			return err
		}
	}
	return nil
}

func TestCollectWritesAllEntries(t *testing.T) {
	s := newFakeScraper(t, []string{"post one\n\nbody", "post two\n\nbody"}, 0)

	n, err := Collect(s, nil, false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if n != 2 {
		t.Fatalf("Collect wrote %d entries, want 2", n)
	}

	bs, err := os.ReadFile(s.ds.JSONLPath())
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}
	if lines := strings.Count(string(bs), "\n"); lines != 2 {
		t.Fatalf("jsonl has %d lines, want 2", lines)
	}
}

func TestCollectKeepsPartialOutputOnFailure(t *testing.T) {
	s := newFakeScraper(t, []string{"post one\n\nbody", "post two\n\nbody", "post three\n\nbody"}, 2)

	n, err := Collect(s, nil, false)
	if err == nil {
		t.Fatalf("Collect should surface the fetch error")
	}
	if n != 2 {
		t.Fatalf("Collect reported %d written entries before failure, want 2", n)
	}

	// The partial output survives: those entries count as done on
	// the next pass.
	bs, err := os.ReadFile(s.ds.JSONLPath())
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}
	if lines := strings.Count(string(bs), "\n"); lines != 2 {
		t.Fatalf("jsonl has %d lines, want 2", lines)
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	s := newFakeScraper(t, nil, 0)
	if _, err := New([]Job{{Scraper: s, CronSpec: "not a spec"}}, nil); err == nil {
		t.Fatalf("New should fail on a bad cron spec")
	}
}

func TestRunOnceCollectsEverySource(t *testing.T) {
	a := newFakeScraper(t, []string{"a\n\nbody"}, 0)
	b := newFakeScraper(t, []string{"b\n\nbody"}, 0)

	s, err := New([]Job{
		{Scraper: a, CronSpec: "@hourly"},
		{Scraper: b, CronSpec: "@hourly"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.RunOnce()

	if a.fetches != 1 || b.fetches != 1 {
		t.Fatalf("fetch counts = %d, %d, want 1, 1", a.fetches, b.fetches)
	}
}
