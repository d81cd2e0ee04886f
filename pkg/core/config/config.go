// Package config holds the runtime knobs for the research core. Values come
// from built-in defaults, optionally overridden by a yaml file and then by
// environment variables (loaded via godotenv in the entrypoints).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultListenAddr     = ":8000"
	defaultQuickTimeout   = 30 * time.Second
	defaultBulkTimeout    = 120 * time.Second
	defaultQuickTTL       = 10 * time.Minute
	defaultArchiveTTL     = 6 * time.Hour
	defaultMaxConcurrent  = 10
	defaultMinArchiveSize = 512
	defaultRatePerSec     = 4

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	defaultCVMDataURL     = "https://dados.cvm.gov.br/dados/FII/DOC"
	defaultCVMRegistryURL = "https://dados.cvm.gov.br/dados/FII/CAD/DADOS/cad_fii.csv"
	defaultFNETBaseURL    = "https://fnet.bmfbovespa.com.br/fnet/publico"
	defaultMarketSiteURL  = "https://statusinvest.com.br"
)

// Config is passed by reference into every component at construction time.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	UserAgent  string `yaml:"user_agent"`

	// Distinct budgets: small lookups vs multi-megabyte bulk downloads.
	QuickTimeout time.Duration `yaml:"quick_timeout"`
	BulkTimeout  time.Duration `yaml:"bulk_timeout"`

	// Distinct TTLs: market indicators move daily, bulk archives at most daily.
	QuickTTL   time.Duration `yaml:"quick_ttl"`
	ArchiveTTL time.Duration `yaml:"archive_ttl"`

	// Upper bound on simultaneous per-year archive downloads.
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`

	// Bundles smaller than this are treated as truncated transfers.
	MinArchiveBytes int `yaml:"min_archive_bytes"`

	// Politeness limit against upstream hosts, requests per second.
	RequestsPerSecond int `yaml:"requests_per_second"`

	CVMDataURL     string `yaml:"cvm_data_url"`
	CVMRegistryURL string `yaml:"cvm_registry_url"`
	FNETBaseURL    string `yaml:"fnet_base_url"`
	MarketSiteURL  string `yaml:"market_site_url"`
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		ListenAddr:           defaultListenAddr,
		UserAgent:            defaultUserAgent,
		QuickTimeout:         defaultQuickTimeout,
		BulkTimeout:          defaultBulkTimeout,
		QuickTTL:             defaultQuickTTL,
		ArchiveTTL:           defaultArchiveTTL,
		MaxConcurrentFetches: defaultMaxConcurrent,
		MinArchiveBytes:      defaultMinArchiveSize,
		RequestsPerSecond:    defaultRatePerSec,
		CVMDataURL:           defaultCVMDataURL,
		CVMRegistryURL:       defaultCVMRegistryURL,
		FNETBaseURL:          defaultFNETBaseURL,
		MarketSiteURL:        defaultMarketSiteURL,
	}
}

// Load reads an optional yaml file on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.MaxConcurrentFetches < 1 || cfg.MaxConcurrentFetches > defaultMaxConcurrent {
		cfg.MaxConcurrentFetches = defaultMaxConcurrent
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RESEARCH_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("RESEARCH_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("RESEARCH_CVM_DATA_URL"); v != "" {
		c.CVMDataURL = v
	}
	if v := os.Getenv("RESEARCH_CVM_REGISTRY_URL"); v != "" {
		c.CVMRegistryURL = v
	}
	if v := os.Getenv("RESEARCH_FNET_BASE_URL"); v != "" {
		c.FNETBaseURL = v
	}
	if v := os.Getenv("RESEARCH_MARKET_SITE_URL"); v != "" {
		c.MarketSiteURL = v
	}
	if v := os.Getenv("RESEARCH_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentFetches = n
		}
	}
	if v := os.Getenv("RESEARCH_QUICK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.QuickTTL = d
		}
	}
	if v := os.Getenv("RESEARCH_ARCHIVE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ArchiveTTL = d
		}
	}
}
