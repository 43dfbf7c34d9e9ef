// Package news collects fishery news from RSS feeds, has a text model pick
// and summarize the relevant items, and keeps a capped newest-first store.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"katsuo-market/internal/normalize"
)

const maxFeedBytes = 4 << 20

// FeedEntry is one RSS item as handed to the summarizer.
type FeedEntry struct {
	Title       string
	Link        string
	Description string
	Published   string
	Feed        string
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// RSS 1.0 (RDF) puts items beside the channel.
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"`
}

// FetchFeeds reads every feed in order. A feed that cannot be fetched or
// parsed is logged and skipped; the error is returned only when every feed
// failed.
func FetchFeeds(ctx context.Context, client *http.Client, urls []string, logger *zap.Logger) ([]FeedEntry, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		out     []FeedEntry
		lastErr error
		failed  int
	)
	for _, u := range urls {
		entries, err := fetchFeed(ctx, client, u)
		if err != nil {
			failed++
			lastErr = err
			logger.Warn("feed unavailable", zap.String("url", u), zap.Error(err))
			continue
		}
		logger.Debug("feed fetched", zap.String("url", u), zap.Int("entries", len(entries)))
		out = append(out, entries...)
	}
	if len(urls) > 0 && failed == len(urls) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}
	return out, nil
}

func fetchFeed(ctx context.Context, client *http.Client, url string) ([]FeedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return ParseFeed(io.LimitReader(resp.Body, maxFeedBytes), url)
}

// ParseFeed decodes an RSS 2.0 or RSS 1.0 document.
func ParseFeed(r io.Reader, source string) ([]FeedEntry, error) {
	var doc rssDocument
	dec := xml.NewDecoder(r)
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := append(doc.Channel.Items, doc.Items...)
	out := make([]FeedEntry, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		published := it.PubDate
		if published == "" {
			published = it.Date
		}
		out = append(out, FeedEntry{
			Title:       title,
			Link:        link,
			Description: strings.TrimSpace(it.Description),
			Published:   strings.TrimSpace(published),
			Feed:        source,
		})
	}
	return out, nil
}

// FilterEntries keeps entries whose title or description mentions any
// keyword, at most limit of them. No keywords keeps everything; limit <= 0
// means no limit.
func FilterEntries(entries []FeedEntry, keywords []string, limit int) []FeedEntry {
	var out []FeedEntry
	for _, e := range entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if len(keywords) == 0 || mentions(e.Title+" "+e.Description, keywords) {
			out = append(out, e)
		}
	}
	return out
}

func mentions(text string, keywords []string) bool {
	folded := normalize.Fold(text)
	for _, kw := range keywords {
		if kw = normalize.Fold(kw); kw != "" && strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
