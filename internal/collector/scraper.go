package collector

import "github.com/datasethub/datasethub/internal/dataset"

// Scraper abstracts one data source. FetchEntries streams entries
// through the emit callback as they are parsed, so a long paginated
// run writes as it goes instead of buffering everything; returning a
// non-nil error from emit stops the run.
type Scraper interface {
	Name() string
	Dataset() *dataset.Dataset
	FetchEntries(emit func(*dataset.Entry) error) error
}
