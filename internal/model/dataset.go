package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Dataset is the canonical market data document: port -> size -> series.
// Each series is ordered ascending by date and holds at most one
// observation per date.
type Dataset map[Port]map[string][]PriceObservation

// seriesEntry is the on-disk shape of one observation inside a series.
type seriesEntry struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Len returns the number of observations across all series.
func (d Dataset) Len() int {
	n := 0
	for _, sizes := range d {
		for _, series := range sizes {
			n += len(series)
		}
	}
	return n
}

func (d Dataset) Get(k Key) (PriceObservation, bool) {
	for _, o := range d[k.Port][k.Size] {
		if o.Date.Format(DateLayout) == k.Date {
			return o, true
		}
	}
	return PriceObservation{}, false
}

// Sizes returns the size labels present for a port, sorted.
func (d Dataset) Sizes(port Port) []string {
	out := make([]string, 0, len(d[port]))
	for size := range d[port] {
		out = append(out, size)
	}
	sort.Strings(out)
	return out
}

// PortsPresent returns the ports present in the dataset: known ports first
// in display order, then any others sorted.
func (d Dataset) PortsPresent() []Port {
	out := make([]Port, 0, len(d))
	seen := map[Port]bool{}
	for _, p := range Ports {
		if _, ok := d[p]; ok {
			out = append(out, p)
			seen[p] = true
		}
	}
	var extra []Port
	for p := range d {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Observations flattens the dataset in (port, size, date) order.
func (d Dataset) Observations() []PriceObservation {
	out := make([]PriceObservation, 0, d.Len())
	for _, port := range d.PortsPresent() {
		for _, size := range d.Sizes(port) {
			out = append(out, d[port][size]...)
		}
	}
	return out
}

// Clone returns a deep copy; series slices are not shared.
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for port, sizes := range d {
		m := make(map[string][]PriceObservation, len(sizes))
		for size, series := range sizes {
			m[size] = append([]PriceObservation(nil), series...)
		}
		out[port] = m
	}
	return out
}

// SortSeries orders every series ascending by date.
func (d Dataset) SortSeries() {
	for _, sizes := range d {
		for _, series := range sizes {
			sort.SliceStable(series, func(i, j int) bool {
				return series[i].Date.Before(series[j].Date)
			})
		}
	}
}

// RoundPrice rounds a price to one decimal place, as published.
func RoundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(1).InexactFloat64()
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string][]seriesEntry, len(d))
	for port, sizes := range d {
		m := make(map[string][]seriesEntry, len(sizes))
		for size, series := range sizes {
			entries := make([]seriesEntry, 0, len(series))
			for _, o := range series {
				entries = append(entries, seriesEntry{
					Date:   o.Date.Format(DateLayout),
					Price:  RoundPrice(o.Price),
					Volume: o.Volume,
				})
			}
			m[size] = entries
		}
		out[string(port)] = m
	}
	return json.Marshal(out)
}

func (d *Dataset) UnmarshalJSON(raw []byte) error {
	var in map[string]map[string][]seriesEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	out := make(Dataset, len(in))
	for port, sizes := range in {
		m := make(map[string][]PriceObservation, len(sizes))
		for size, entries := range sizes {
			series := make([]PriceObservation, 0, len(entries))
			for _, e := range entries {
				date, err := ParseDate(e.Date)
				if err != nil {
					return fmt.Errorf("%s/%s: %w", port, size, err)
				}
				series = append(series, PriceObservation{
					Date:   date,
					Port:   Port(port),
					Size:   size,
					Price:  e.Price,
					Volume: e.Volume,
				})
			}
			m[size] = series
		}
		out[Port(port)] = m
	}
	out.SortSeries()
	*d = out
	return nil
}
