package data

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
)

const (
	DefaultScrapeURL       = "https://www.yaizu-gyokyo.or.jp/itiba/msinfo/"
	DefaultScrapeTimeout   = 10 * time.Second
	DefaultScrapeUserAgent = "katsuo-market/1.0 (+market price collector)"
	DefaultMaxBodyBytes    = 2 << 20
)

// DefaultIncludeKeywords selects purse-seine frozen skipjack tables.
var DefaultIncludeKeywords = []string{"旋網冷凍かつお"}

// DefaultExcludeKeywords rejects other species and catch methods that share
// the same page layout.
var DefaultExcludeKeywords = []string{"びんなが", "きはだ", "めばち", "まぐろ", "一本釣", "竿釣", "生鮮"}

var jst = time.FixedZone("JST", 9*60*60)

// ScrapeSource scrapes the market-info page of a fish market.
type ScrapeSource struct {
	URL          string
	Port         model.Port
	Include      []string
	Exclude      []string
	UserAgent    string
	MaxBodyBytes int64

	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// ScrapeOption configures a ScrapeSource.
type ScrapeOption func(*ScrapeSource)

// WithTimeout bounds the whole HTTP exchange.
func WithTimeout(d time.Duration) ScrapeOption {
	return func(s *ScrapeSource) {
		s.client.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ScrapeOption {
	return func(s *ScrapeSource) {
		s.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ScrapeOption {
	return func(s *ScrapeSource) {
		if logger != nil {
			s.logger = logger.Named("scrape")
		}
	}
}

// WithClock sets the clock used when the page carries no market date.
func WithClock(now func() time.Time) ScrapeOption {
	return func(s *ScrapeSource) {
		s.now = now
	}
}

// WithKeywords overrides the include/exclude keyword sets.
func WithKeywords(include, exclude []string) ScrapeOption {
	return func(s *ScrapeSource) {
		s.Include = include
		s.Exclude = exclude
	}
}

// NewScrapeSource creates a scraper for url whose records are attributed
// to port. If url is empty, the Yaizu market-info page is used.
func NewScrapeSource(url string, port model.Port, opts ...ScrapeOption) *ScrapeSource {
	if url == "" {
		url = DefaultScrapeURL
	}
	if port == "" {
		port = model.PortYaizu
	}
	s := &ScrapeSource{
		URL:          url,
		Port:         port,
		Include:      DefaultIncludeKeywords,
		Exclude:      DefaultExcludeKeywords,
		UserAgent:    DefaultScrapeUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		client: &http.Client{
			Timeout: DefaultScrapeTimeout,
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ScrapeSource) Name() string { return "scrape" }

func (s *ScrapeSource) Fetch(ctx context.Context) (iter.Seq[model.RawRecord], error) {
	body, err := s.fetchPage(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("parse html: %w", err))
	}

	date := MarketDate(PageText(doc), s.now())
	sections := ExtractSections(doc)
	matched := MatchSections(sections, s.Include, s.Exclude)

	s.logger.Info("scraped market page",
		zap.String("url", s.URL),
		zap.String("market_date", date),
		zap.Int("tables", len(sections)),
		zap.Int("matched_tables", len(matched)))

	seq := func(yield func(model.RawRecord) bool) {
		for _, sec := range matched {
			for _, cells := range sec.Rows {
				rec, ok := RowRecord(cells, date, s.Port)
				if !ok {
					continue
				}
				if !yield(rec) {
					return
				}
			}
		}
	}
	return once(seq), nil
}

// fetchPage performs the GET and returns the body converted to UTF-8.
func (s *ScrapeSource) fetchPage(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	s.logger.Debug("request", zap.String("method", req.Method), zap.String("url", s.URL))

	start := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("request failed", zap.String("url", s.URL), zap.Duration("duration", duration), zap.Error(err))
		return nil, unavailable(s.Name(), fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	s.logger.Debug("response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("url", s.URL))

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("unexpected status", zap.Int("status", resp.StatusCode), zap.String("url", s.URL))
		return nil, &SourceError{
			Source:     s.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	utf8Body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("detect charset: %w", err))
	}
	body, err := io.ReadAll(io.LimitReader(utf8Body, s.MaxBodyBytes))
	if err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// Section is one data table together with the text that introduces it.
type Section struct {
	// Context is the nearest heading-like text preceding the table.
	Context string
	// Text is the table's own text content.
	Text string
	// Rows holds the td cell texts of each row.
	Rows [][]string
}

// ExtractSections walks the document once and returns every top-level
// table paired with its preceding context text. Nested tables belong to
// their outer table.
func ExtractSections(doc *html.Node) []Section {
	var sections []Section
	heading := ""

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "table":
				sections = append(sections, Section{
					Context: heading,
					Text:    collapseSpace(textContent(n)),
					Rows:    tableRows(n),
				})
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "dt", "p", "strong", "b", "label":
				if t := collapseSpace(textContent(n)); t != "" {
					heading = t
				}
				return
			case "div", "section", "span", "li":
				if t := collapseSpace(directText(n)); t != "" {
					heading = t
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sections
}

// MatchSections keeps sections that belong to the target species. A section
// whose context mentions an excluded keyword is always dropped. Otherwise it
// is kept when its context, or failing that its own text, mentions an
// included keyword without mentioning an excluded one. An empty include set
// matches everything not excluded.
func MatchSections(sections []Section, include, exclude []string) []Section {
	var out []Section
	for _, sec := range sections {
		if containsAny(sec.Context, exclude) {
			continue
		}
		if len(include) == 0 || containsAny(sec.Context, include) {
			out = append(out, sec)
			continue
		}
		if containsAny(sec.Text, include) && !containsAny(sec.Text, exclude) {
			out = append(out, sec)
		}
	}
	return out
}

// RowRecord derives a raw record from one table row laid out as
// [size, high price, low price, volume, ...]. Rows with fewer than four
// cells or without a positive price are rejected.
func RowRecord(cells []string, date string, port model.Port) (model.RawRecord, bool) {
	if len(cells) < 4 {
		return model.RawRecord{}, false
	}
	high := cellNumber(cells[1])
	low := cellNumber(cells[2])
	volume := cellNumber(cells[3])

	price := DerivePrice(high, low)
	if price <= 0 {
		return model.RawRecord{}, false
	}
	return model.RawRecord{
		Source: "scrape",
		Date:   date,
		Port:   string(port),
		Size:   strings.TrimSpace(cells[0]),
		Price:  strconv.FormatFloat(price, 'f', -1, 64),
		Volume: strconv.FormatFloat(volume, 'f', -1, 64),
	}, true
}

// DerivePrice returns the mean of high and low when both are positive,
// otherwise whichever is positive. A zero figure is treated the same as a
// missing one.
func DerivePrice(high, low float64) float64 {
	switch {
	case high > 0 && low > 0:
		return (high + low) / 2
	case high > 0:
		return high
	default:
		return low
	}
}

var (
	nonNumeric  = regexp.MustCompile(`[^\d.]`)
	datePattern = regexp.MustCompile(`(\d{4})[/年](\d{1,2})[/月](\d{1,2})`)
)

// cellNumber strips everything but digits and dots; anything unparsable
// reduces to 0.
func cellNumber(s string) float64 {
	s = nonNumeric.ReplaceAllString(norm.NFKC.String(s), "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// MarketDate returns the first YYYY/MM/DD date printed in text, or now's
// date in Japan time.
func MarketDate(text string, now time.Time) string {
	m := datePattern.FindStringSubmatch(norm.NFKC.String(text))
	if m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		if t.Month() == time.Month(mo) && t.Day() == d {
			return t.Format(model.DateLayout)
		}
	}
	return now.In(jst).Format(model.DateLayout)
}

// PageText returns the visible text of the document.
func PageText(doc *html.Node) string {
	return textContent(doc)
}

func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					cells = append(cells, collapseSpace(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// directText returns only the text nodes that are immediate children of n.
func directText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(text string, keywords []string) bool {
	folded := normalize.Fold(text)
	for _, kw := range keywords {
		if kw = normalize.Fold(kw); kw != "" && strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
