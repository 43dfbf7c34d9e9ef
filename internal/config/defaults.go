package config

import (
	"os"
	"time"

	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultDataFile         = data.DefaultDataPath
	DefaultNewsFile         = "./data/katsuo_news.json"
	DefaultCSVPath          = "./data/market_input.csv"
	DefaultCSVEncoding      = "utf-8"
	DefaultFallbackEncoding = "cp932"
	DefaultScrapeURL        = "https://www.yaizu-gyokyo.or.jp/itiba/msinfo/"
	DefaultScrapePort       = string(model.PortYaizu)
	DefaultScrapeTimeout    = 10 * time.Second
	DefaultLowBound         = 10.0
	DefaultHighBound        = 600.0
	DefaultArchivePath      = "./data/katsuo_market.db"
	DefaultServerAddr       = ":8000"
	DefaultStaticDir        = "."
	DefaultCacheTTL         = 30 * time.Second
	DefaultNewsModel        = "gemini-2.0-flash"
	DefaultNewsMaxItems     = 15
	DefaultNewsTimeout      = 30 * time.Second
	DefaultLogLevel         = "info"
)

// DefaultNewsFeeds are the fishery news RSS feeds polled by `katsuo news`.
var DefaultNewsFeeds = []string{
	"https://news.google.com/rss/search?q=%E3%82%AB%E3%83%84%E3%82%AA+%E6%BC%81&hl=ja&gl=JP&ceid=JP:ja",
	"https://news.google.com/rss/search?q=%E7%84%BC%E6%B4%A5+%E6%BC%81%E6%B8%AF&hl=ja&gl=JP&ceid=JP:ja",
}

// DefaultNewsKeywords pre-filter feed entries before summarization.
var DefaultNewsKeywords = []string{"かつお", "カツオ", "鰹", "焼津", "枕崎", "山川", "水揚"}

// Default returns a configuration with every field at its default; the
// CSV and scrape sources are enabled, the archive is not.
func Default() *Config {
	c := &Config{
		Sources: SourcesConfig{
			CSV:    CSVConfig{Enabled: true},
			Scrape: ScrapeConfig{Enabled: true},
		},
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	// Output defaults
	if c.Output.DataFile == "" {
		c.Output.DataFile = data.GetDefaultDataPath()
	}
	if c.Output.NewsFile == "" {
		c.Output.NewsFile = DefaultNewsFile
	}

	// Source defaults
	if c.Sources.CSV.Path == "" {
		c.Sources.CSV.Path = DefaultCSVPath
	}
	if c.Sources.CSV.Encoding == "" {
		c.Sources.CSV.Encoding = DefaultCSVEncoding
	}
	if c.Sources.CSV.FallbackEncoding == "" {
		c.Sources.CSV.FallbackEncoding = DefaultFallbackEncoding
	}
	if c.Sources.Scrape.URL == "" {
		c.Sources.Scrape.URL = DefaultScrapeURL
	}
	if c.Sources.Scrape.Port == "" {
		c.Sources.Scrape.Port = DefaultScrapePort
	}
	if c.Sources.Scrape.Timeout == 0 {
		c.Sources.Scrape.Timeout = DefaultScrapeTimeout
	}

	// Filter defaults
	c.Filter = MergeFilter(FilterConfig{LowBound: DefaultLowBound, HighBound: DefaultHighBound}, c.Filter)

	if c.Archive.Path == "" {
		c.Archive.Path = DefaultArchivePath
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = DefaultStaticDir
	}
	if c.Server.CacheTTL == 0 {
		c.Server.CacheTTL = DefaultCacheTTL
	}
	if c.Server.AuthUser == "" {
		c.Server.AuthUser = os.Getenv("AUTH_USER")
	}
	if c.Server.AuthPass == "" {
		c.Server.AuthPass = os.Getenv("AUTH_PASS")
	}

	// News defaults
	if len(c.News.Feeds) == 0 {
		c.News.Feeds = append([]string(nil), DefaultNewsFeeds...)
	}
	if len(c.News.Keywords) == 0 {
		c.News.Keywords = append([]string(nil), DefaultNewsKeywords...)
	}
	if c.News.Model == "" {
		c.News.Model = DefaultNewsModel
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = DefaultNewsMaxItems
	}
	if c.News.Timeout == 0 {
		c.News.Timeout = DefaultNewsTimeout
	}
	if c.News.APIKey == "" {
		c.News.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
