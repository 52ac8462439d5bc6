package scheduler

import (
	"log"
	"time"

	"github.com/datasethub/datasethub/internal/collector"
	"github.com/datasethub/datasethub/internal/storage"
	"github.com/robfig/cron/v3"
)

// Job pairs a scraper with its own collection cadence.
type Job struct {
	Scraper  collector.Scraper
	CronSpec string
}

type Scheduler struct {
	cron  *cron.Cron
	jobs  []Job
	store *storage.Store
}

// New registers one cron entry per job. store may be nil (no archive
// mirroring). Scheduled runs always append: the done set makes a
// repeat pass a no-op for pages already collected.
func New(jobs []Job, store *storage.Store) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:  c,
		jobs:  jobs,
		store: store,
	}

	for _, j := range jobs {
		job := j
		if _, err := c.AddFunc(job.CronSpec, func() { s.collect(job) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// Delay the first pass so startup (migrations, first API hits)
	// isn't competing with a full collection run.
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.RunOnce()
	})
}

// RunOnce collects every source sequentially. The pipeline is
// deliberately single-threaded: each dataset's output pair has no
// write guard, and page order inside a source is what the pagination
// sentinel depends on.
func (s *Scheduler) RunOnce() {
	log.Println("start collect job...")
	for _, j := range s.jobs {
		s.collect(j)
	}
	log.Println("collect job done (all sources)")
}

func (s *Scheduler) collect(j Job) {
	name := j.Scraper.Name()
	n, err := Collect(j.Scraper, s.store, false)
	if err != nil {
		log.Printf("collect %s error: %v", name, err)
		return
	}
	log.Printf("%s done, wrote %d entries", name, n)
}

// Collect is the one collection path: stream entries from the
// scraper straight into the dataset's writer, then mirror the written
// batch to the archive when one is configured. Entries written before
// a mid-run failure stay in the files and count as done on the next
// pass.
func Collect(s collector.Scraper, store *storage.Store, overwrite bool) (int, error) {
	w, err := s.Dataset().NewWriter(overwrite)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	fetchErr := s.FetchEntries(w.Write)

	written := w.Written()
	if store != nil && len(written) > 0 {
		if err := store.SaveBatch(written); err != nil {
			log.Printf("warn: archive %s batch: %v", s.Name(), err)
		}
	}
	return len(written), fetchErr
}
