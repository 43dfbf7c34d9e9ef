package config

import (
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap/zapcore"

	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Output.DataFile == "" {
		return errors.New("output.data_file is required")
	}

	if c.Sources.CSV.Enabled && c.Sources.CSV.Path == "" {
		return errors.New("sources.csv.path is required when the csv source is enabled")
	}
	if c.Sources.Scrape.Enabled {
		if err := c.Sources.Scrape.validate("sources.scrape"); err != nil {
			return err
		}
	}

	if err := c.Filter.Validate(); err != nil {
		return err
	}

	if err := normalize.ValidateAliases(c.Sizes.Aliases); err != nil {
		return fmt.Errorf("sizes.aliases: %w", err)
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("archive.path is required when the archive is enabled")
	}

	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl must be >= 0, got %s", c.Server.CacheTTL)
	}
	if (c.Server.AuthUser == "") != (c.Server.AuthPass == "") {
		return errors.New("server.auth_user and server.auth_pass must be set together")
	}

	if c.News.MaxItems < 1 {
		return fmt.Errorf("news.max_items must be >= 1, got %d", c.News.MaxItems)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Validate checks that the band is non-empty.
func (f FilterConfig) Validate() error {
	if f.LowBound < 0 {
		return fmt.Errorf("filter.low_bound must be >= 0, got %v", f.LowBound)
	}
	if f.HighBound <= f.LowBound {
		return fmt.Errorf("filter.high_bound (%v) must be greater than filter.low_bound (%v)", f.HighBound, f.LowBound)
	}
	return nil
}

func (s ScrapeConfig) validate(prefix string) error {
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s.url must be an absolute URL, got %q", prefix, s.URL)
	}
	if s.Port == "" {
		return fmt.Errorf("%s.port is required", prefix)
	}
	if !model.Port(s.Port).Valid() {
		return fmt.Errorf("%s.port %q is not a known port", prefix, s.Port)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be > 0, got %s", prefix, s.Timeout)
	}
	return nil
}
