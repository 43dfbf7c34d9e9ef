package news

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultMaxEntries bounds how many feed entries go into one prompt.
const DefaultMaxEntries = 20

// Updater runs one fetch, summarize and merge cycle for the news store.
type Updater struct {
	Feeds      []string
	Keywords   []string
	MaxEntries int
	MaxItems   int
	Path       string

	Client     *http.Client
	Summarizer *Summarizer
	Logger     *zap.Logger
}

// Update returns the number of items added. Nothing is written when the
// model selects no new items.
func (u *Updater) Update(ctx context.Context) (int, error) {
	logger := u.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("news")

	entries, err := FetchFeeds(ctx, u.Client, u.Feeds, logger)
	if err != nil {
		return 0, err
	}
	limit := u.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	entries = FilterEntries(entries, u.Keywords, limit)
	logger.Info("feed entries selected", zap.Int("entries", len(entries)))
	if len(entries) == 0 {
		return 0, nil
	}

	fresh, err := u.Summarizer.Summarize(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("summarize: %w", err)
	}
	if len(fresh) == 0 {
		logger.Info("no relevant news selected")
		return 0, nil
	}

	existing, err := Load(u.Path)
	if err != nil {
		return 0, err
	}
	merged, added := Merge(existing, fresh, u.MaxItems)
	if added == 0 {
		logger.Info("no new news items")
		return 0, nil
	}
	if err := Save(u.Path, merged); err != nil {
		return 0, err
	}
	logger.Info("news store updated", zap.Int("added", added), zap.Int("total", len(merged)))
	return added, nil
}
