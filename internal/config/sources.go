package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Sources file validation errors.
var (
	ErrNoSources        = errors.New("at least one source is required")
	ErrNoEnabledSources = errors.New("at least one source must be enabled")
	ErrSourceMissingURL = errors.New("url is required")
	ErrInvalidMaxPages  = errors.New("max_pages must not be negative")
)

// Source describes one blog to scrape: its base URL, the HTML
// patterns stripped from post bodies, and a pagination ceiling.
type Source struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Strip    []string `yaml:"strip"`
	MaxPages int      `yaml:"max_pages"`
	CronSpec string   `yaml:"cron"`
	Enabled  *bool    `yaml:"enabled"`
}

// IsEnabled defaults to true when the key is omitted.
func (s *Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads and validates the YAML sources file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	if err := validateSources(f.Sources); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	return f.Sources, nil
}

func validateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}

	enabled := 0
	for i, src := range sources {
		if src.URL == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingURL, i)
		}
		if src.MaxPages < 0 {
			return fmt.Errorf("%w: source[%d]", ErrInvalidMaxPages, i)
		}
		for _, p := range src.Strip {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("source[%d] strip pattern %q: %w", i, p, err)
			}
		}
		if src.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoEnabledSources
	}
	return nil
}

// EnabledSources filters the list down to sources that should run.
func EnabledSources(sources []Source) []Source {
	var out []Source
	for _, s := range sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}
