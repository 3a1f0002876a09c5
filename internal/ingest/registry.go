package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig overrides HTTP fetching behavior for a single source.
// Zero values fall back to the fetcher defaults.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	MaxRetries     int     `yaml:"max_retries,omitempty"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// SelectorConfig drives the html_listing strategy.
type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // CSS selector for the list item wrapper
	Link      string `yaml:"link,omitempty"`
	LinkAttr  string `yaml:"link_attr,omitempty"` // default: href
	Title     string `yaml:"title,omitempty"`
	Agency    string `yaml:"agency,omitempty"`
	Deadline  string `yaml:"deadline,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	Content   string `yaml:"content,omitempty"`
}

type PaginationConfig struct {
	Next string `yaml:"next,omitempty"` // CSS selector for the next page link
}

// SourceConfig defines a single data source for ingestion.
type SourceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Country  string `yaml:"country"`
	Strategy string `yaml:"strategy"` // "api_sam_gov", "api_world_bank", "html_listing"
	BaseURL  string `yaml:"base_url,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Keyword  string `yaml:"keyword,omitempty"` // search term for API strategies
	Currency string `yaml:"currency,omitempty"`
	Active   bool   `yaml:"active"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// For the html_listing strategy
	Selectors   SelectorConfig   `yaml:"selectors,omitempty"`
	Pagination  PaginationConfig `yaml:"pagination,omitempty"`
	MaxPages    int              `yaml:"max_pages,omitempty"`
	DateLocales []string         `yaml:"date_locales,omitempty"` // ["en", "es", "fr", "de"]
}

// LoadRegistry reads the embedded sources.yaml, or the given path when
// it points at an override file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if path != "" {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}

	// Expand environment variables within the YAML content (e.g. ${SAM_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Active returns the sources enabled for this run.
func (r *Registry) Active() []SourceConfig {
	var out []SourceConfig
	for _, s := range r.Sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects registries the dispatcher cannot run.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		if s.ID == "" {
			return fmt.Errorf("source with empty id (name %q)", s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Strategy == "" {
			return fmt.Errorf("source %q has no strategy", s.ID)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("source %q has no base_url", s.ID)
		}
		if s.Strategy == "html_listing" && s.Selectors.Container == "" {
			return fmt.Errorf("source %q: selector 'container' is required for html_listing", s.ID)
		}
	}
	return nil
}
