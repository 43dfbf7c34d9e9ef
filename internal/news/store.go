package news

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
)

// DefaultMaxItems is how many items the news store retains.
const DefaultMaxItems = 15

// Load reads the news store. A missing or empty file is an empty store.
func Load(path string) ([]model.NewsItem, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var items []model.NewsItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return items, nil
}

// Save atomically writes the news store.
func Save(path string, items []model.NewsItem) error {
	if items == nil {
		items = []model.NewsItem{}
	}
	return data.WriteJSON(path, items)
}

// ItemID derives a stable ID from an article URL.
func ItemID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(url))).String()
}

// Merge adds fresh items whose ID is not already stored, orders everything
// newest first and keeps at most limit items. Fresh items without an ID get
// one derived from their URL. It returns the merged list and how many fresh
// items were added.
func Merge(existing, fresh []model.NewsItem, limit int) ([]model.NewsItem, int) {
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	seen := make(map[string]bool, len(existing)+len(fresh))
	for _, it := range existing {
		seen[it.ID] = true
	}

	var added []model.NewsItem
	for _, it := range fresh {
		if it.ID == "" {
			it.ID = ItemID(it.URL)
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		added = append(added, it)
	}

	combined := make([]model.NewsItem, 0, len(added)+len(existing))
	combined = append(combined, added...)
	combined = append(combined, existing...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Date > combined[j].Date
	})
	if len(combined) > limit {
		combined = combined[:limit]
	}
	return combined, len(added)
}
