package main

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/datasethub/datasethub/internal/api"
	"github.com/datasethub/datasethub/internal/collector"
	"github.com/datasethub/datasethub/internal/config"
	"github.com/datasethub/datasethub/internal/scheduler"
	"github.com/datasethub/datasethub/internal/storage"
	"github.com/gin-gonic/gin"
)

// Long-running entrypoint: periodic collection via cron plus the read
// API over the mirrored records. The archive store is required here;
// use cmd/collect for files-only runs.
func main() {
	cfg := config.Load()

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required for the api server")
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}

	var jobs []scheduler.Job
	for _, src := range config.EnabledSources(sources) {
		blog, err := collector.NewWordpressBlog(src.URL, src.Strip, src.MaxPages, cfg.DataPath)
		if err != nil {
			log.Fatalf("init scraper for %s failed: %v", src.URL, err)
		}

		name := src.Name
		if name == "" {
			name = blog.Name()
		}
		if _, err := store.EnsureSource(blog.Name(), name, src.URL); err != nil {
			log.Fatalf("ensure source %s failed: %v", blog.Name(), err)
		}

		spec := src.CronSpec
		if spec == "" {
			spec = cfg.CronSpec
		}
		jobs = append(jobs, scheduler.Job{Scraper: blog, CronSpec: spec})
	}

	s, err := scheduler.New(jobs, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	r := gin.Default()
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// basicAuthMiddleware puts a site-wide access password in front of
// the API when APP_BASIC_USER / APP_BASIC_PASS are set. /health stays
// open for health checks.
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
