package analysis

import (
	"time"

	"katsuo-market/internal/model"
)

// SizeSummary is the latest-day view of one size series.
type SizeSummary struct {
	Port model.Port
	Size string

	// Latest is the entry on the port's latest trading date, if the size
	// traded that day.
	Latest *model.PriceObservation
	// Previous is the entry before Latest, or the last entry when the size
	// did not trade on the latest date.
	Previous *model.PriceObservation

	// Change is Latest.Price - Previous.Price; zero unless both exist.
	Change    float64
	HasChange bool
}

// PortSummary is a node-level summary for one port.
type PortSummary struct {
	Port       model.Port
	LatestDate time.Time
	Sizes      []SizeSummary
}

// Summarize computes, per port, the latest trading date across all sizes and
// each size's price on that date relative to its previous entry. Ports
// without any observation are omitted.
func Summarize(ds model.Dataset) []PortSummary {
	var out []PortSummary
	for _, port := range ds.PortsPresent() {
		var latest time.Time
		for _, series := range ds[port] {
			if n := len(series); n > 0 && series[n-1].Date.After(latest) {
				latest = series[n-1].Date
			}
		}
		if latest.IsZero() {
			continue
		}

		ps := PortSummary{Port: port, LatestDate: latest}
		for _, size := range ds.Sizes(port) {
			series := ds[port][size]
			if len(series) == 0 {
				continue
			}
			ps.Sizes = append(ps.Sizes, summarizeSeries(port, size, series, latest))
		}
		out = append(out, ps)
	}
	return out
}

func summarizeSeries(port model.Port, size string, series []model.PriceObservation, latest time.Time) SizeSummary {
	s := SizeSummary{Port: port, Size: size}

	idx := -1
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Date.Equal(latest) {
			idx = i
			break
		}
	}

	if idx < 0 {
		last := series[len(series)-1]
		s.Previous = &last
		return s
	}

	cur := series[idx]
	s.Latest = &cur
	if idx > 0 {
		prev := series[idx-1]
		s.Previous = &prev
		s.Change = model.RoundPrice(cur.Price - prev.Price)
		s.HasChange = true
	}
	return s
}
