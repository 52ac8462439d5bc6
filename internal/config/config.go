package config

import (
	"log"
	"os"
)

type Config struct {
	AppPort string

	// DataPath is where the per-dataset jsonl/txt pairs live.
	DataPath    string
	SourcesFile string

	// Overwrite truncates existing output instead of appending.
	// Appending is the default: the jsonl file doubles as the
	// resumption ledger.
	Overwrite bool

	// PostgresDSN is optional; empty disables the archive mirror.
	PostgresDSN string
	RedisAddr   string

	CronSpec string

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		DataPath:      getEnv("DATA_PATH", "data"),
		SourcesFile:   getEnv("SOURCES_FILE", "sources.yaml"),
		Overwrite:     getEnv("COLLECT_OVERWRITE", "") == "true",
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:      getEnv("CRON_SPEC", "0 */6 * * *"),
		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s data=%s sources=%s cron=%s", cfg.AppPort, cfg.DataPath, cfg.SourcesFile, cfg.CronSpec)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
