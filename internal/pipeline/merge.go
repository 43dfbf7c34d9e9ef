package pipeline

import (
	"katsuo-market/internal/model"
)

// MergeStats counts what a merge changed.
type MergeStats struct {
	Inserted int
	Replaced int
	Total    int
}

// Merge folds incoming observations into existing and returns a new
// dataset; existing is not modified. An incoming observation replaces an
// existing one with the same key, and later incoming observations replace
// earlier ones. Every series of the result is sorted by date, including
// series of existing that incoming did not touch.
func Merge(existing model.Dataset, incoming []model.PriceObservation) (model.Dataset, MergeStats) {
	out := existing.Clone()
	var stats MergeStats

	for _, o := range incoming {
		sizes, ok := out[o.Port]
		if !ok {
			sizes = map[string][]model.PriceObservation{}
			out[o.Port] = sizes
		}
		series := sizes[o.Size]

		replaced := false
		for i := range series {
			if series[i].Date.Equal(o.Date) {
				series[i] = o
				replaced = true
				break
			}
		}
		if replaced {
			stats.Replaced++
		} else {
			series = append(series, o)
			stats.Inserted++
		}
		sizes[o.Size] = series
	}

	out.SortSeries()

	stats.Total = out.Len()
	return out, stats
}
