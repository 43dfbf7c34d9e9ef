package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML). String values may
// reference environment variables as ${VAR}.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Sources SourcesConfig `yaml:"sources"`
	Filter  FilterConfig  `yaml:"filter"`
	Sizes   SizesConfig   `yaml:"sizes"`
	Archive ArchiveConfig `yaml:"archive"`
	Server  ServerConfig  `yaml:"server"`
	News    NewsConfig    `yaml:"news"`
	Logging LoggingConfig `yaml:"logging"`
}

type OutputConfig struct {
	DataFile string `yaml:"data_file"`
	NewsFile string `yaml:"news_file"`
}

type SourcesConfig struct {
	CSV    CSVConfig    `yaml:"csv"`
	Scrape ScrapeConfig `yaml:"scrape"`
}

type CSVConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Path             string `yaml:"path"`
	Encoding         string `yaml:"encoding"`
	FallbackEncoding string `yaml:"fallback_encoding"`
}

type ScrapeConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Port    string        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Include []string      `yaml:"include"`
	Exclude []string      `yaml:"exclude"`
}

// FilterConfig is the plausible price band in yen/kg, exclusive.
type FilterConfig struct {
	LowBound  float64 `yaml:"low_bound"`
	HighBound float64 `yaml:"high_bound"`
}

type SizesConfig struct {
	// Aliases maps site-specific size texts to canonical labels.
	Aliases map[string]string `yaml:"aliases"`
}

// ArchiveConfig controls the optional SQLite mirror of every run.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	StaticDir      string        `yaml:"static_dir"`
	AuthUser       string        `yaml:"auth_user"`
	AuthPass       string        `yaml:"auth_pass"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type NewsConfig struct {
	Feeds    []string      `yaml:"feeds"`
	Keywords []string      `yaml:"keywords"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	MaxItems int           `yaml:"max_items"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML at path over the built-in defaults and expands ${VAR}
// references. It does not fill blanked fields or validate.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(raw))

	c := Default()
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return c, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

// LoadAndValidate loads config, applies defaults, and validates. An empty
// path yields the validated defaults.
func LoadAndValidate(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = LoadWithDefaults(path); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// MergeFilter overlays non-zero fields from override onto base.
// Used to apply command-line bounds over the configured ones.
func MergeFilter(base, override FilterConfig) FilterConfig {
	out := base
	if override.LowBound != 0 {
		out.LowBound = override.LowBound
	}
	if override.HighBound != 0 {
		out.HighBound = override.HighBound
	}
	return out
}
