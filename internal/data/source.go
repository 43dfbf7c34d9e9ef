package data

import (
	"context"
	"iter"
	"sync/atomic"

	"katsuo-market/internal/model"
)

// Source produces raw candidate records from one origin.
//
// Fetch performs one fetch attempt. A failure to reach or decode the origin
// is returned as an error matching ErrSourceUnavailable. The returned
// sequence is finite and single-use: ranging over it a second time yields
// nothing.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (iter.Seq[model.RawRecord], error)
}

// once wraps a sequence so that it can be consumed a single time.
func once(seq iter.Seq[model.RawRecord]) iter.Seq[model.RawRecord] {
	var used atomic.Bool
	return func(yield func(model.RawRecord) bool) {
		if used.Swap(true) {
			return
		}
		seq(yield)
	}
}

// Collect drains a sequence into a slice.
func Collect(seq iter.Seq[model.RawRecord]) []model.RawRecord {
	var out []model.RawRecord
	for r := range seq {
		out = append(out, r)
	}
	return out
}
