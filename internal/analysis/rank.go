package analysis

import (
	"math"
	"sort"
)

// RankByChange flattens port summaries and sorts the sizes that have a
// day-over-day change by absolute change, descending. Ties keep port and
// size order.
func RankByChange(summaries []PortSummary) []SizeSummary {
	var out []SizeSummary
	for _, ps := range summaries {
		for _, s := range ps.Sizes {
			if s.HasChange {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Change) > math.Abs(out[j].Change)
	})
	return out
}
