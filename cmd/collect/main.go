package main

import (
	"log"

	"github.com/datasethub/datasethub/internal/collector"
	"github.com/datasethub/datasethub/internal/config"
	"github.com/datasethub/datasethub/internal/scheduler"
	"github.com/datasethub/datasethub/internal/storage"
)

// One-shot collection entrypoint: scrape every enabled source once
// and exit. Re-running is cheap, the done set skips pages that are
// already in the jsonl output.
func main() {
	cfg := config.Load()

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}

	// Archive mirroring is opt-in; without a DSN the jsonl/txt pair
	// is the only output.
	var store *storage.Store
	if cfg.PostgresDSN != "" {
		store, err = storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
	}

	for _, src := range config.EnabledSources(sources) {
		blog, err := collector.NewWordpressBlog(src.URL, src.Strip, src.MaxPages, cfg.DataPath)
		if err != nil {
			log.Fatalf("init scraper for %s failed: %v", src.URL, err)
		}

		if store != nil {
			name := src.Name
			if name == "" {
				name = blog.Name()
			}
			if _, err := store.EnsureSource(blog.Name(), name, src.URL); err != nil {
				log.Fatalf("ensure source %s failed: %v", blog.Name(), err)
			}
		}

		n, err := scheduler.Collect(blog, store, cfg.Overwrite)
		if err != nil {
			log.Printf("collect %s error: %v", blog.Name(), err)
			continue
		}
		log.Printf("%s done, wrote %d entries", blog.Name(), n)
	}
}
