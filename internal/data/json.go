package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"strconv"

	"katsuo-market/internal/model"
)

// LoadDataset reads a persisted dataset. A missing file is an empty
// dataset; an unreadable or corrupt file is ErrSourceUnavailable.
func LoadDataset(path string) (model.Dataset, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Dataset{}, nil
	}
	if err != nil {
		return nil, unavailable("prior_json", fmt.Errorf("read %s: %w", path, err))
	}
	ds := model.Dataset{}
	if len(raw) == 0 {
		return ds, nil
	}
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, unavailable("prior_json", fmt.Errorf("parse %s: %w", path, err))
	}
	return ds, nil
}

// PriorJSONSource streams the last persisted dataset as raw records. These
// records are already trusted and are never re-filtered.
type PriorJSONSource struct {
	Path string
}

func NewPriorJSONSource(path string) *PriorJSONSource {
	return &PriorJSONSource{Path: path}
}

func (s *PriorJSONSource) Name() string { return "prior_json" }

func (s *PriorJSONSource) Fetch(ctx context.Context) (iter.Seq[model.RawRecord], error) {
	ds, err := LoadDataset(s.Path)
	if err != nil {
		return nil, err
	}
	observations := ds.Observations()
	seq := func(yield func(model.RawRecord) bool) {
		for _, o := range observations {
			if ctx.Err() != nil {
				return
			}
			rec := model.RawRecord{
				Source: s.Name(),
				Date:   o.Date.Format(model.DateLayout),
				Port:   string(o.Port),
				Size:   o.Size,
				Price:  strconv.FormatFloat(o.Price, 'f', -1, 64),
				Volume: strconv.FormatFloat(o.Volume, 'f', -1, 64),
			}
			if !yield(rec) {
				return
			}
		}
	}
	return once(seq), nil
}
