package pipeline

import (
	"math"
	"sort"

	"katsuo-market/internal/model"
)

// Aggregate collapses observations sharing a (date, port, size) key into
// one: the mean price and the summed volume. Output is in key order.
// Finite inputs always give finite outputs: a price sum that overflows
// falls back to a running mean and the volume saturates at math.MaxFloat64.
func Aggregate(obs []model.PriceObservation) []model.PriceObservation {
	type acc struct {
		first  model.PriceObservation
		sum    float64
		mean   float64
		volume float64
		n      int
	}

	groups := make(map[model.Key]*acc, len(obs))
	for _, o := range obs {
		k := o.Key()
		a, ok := groups[k]
		if !ok {
			a = &acc{first: o}
			groups[k] = a
		}
		a.n++
		a.sum += o.Price
		a.mean += (o.Price - a.mean) / float64(a.n)
		a.volume = saturatingAdd(a.volume, o.Volume)
	}

	out := make([]model.PriceObservation, 0, len(groups))
	for _, a := range groups {
		o := a.first
		o.Price = a.sum / float64(a.n)
		if math.IsInf(a.sum, 0) {
			o.Price = a.mean
		}
		o.Volume = a.volume
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key(), out[j].Key()) })
	return out
}

func saturatingAdd(a, b float64) float64 {
	if sum := a + b; !math.IsInf(sum, 1) {
		return sum
	}
	return math.MaxFloat64
}

func keyLess(a, b model.Key) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Port != b.Port {
		return a.Port < b.Port
	}
	return a.Size < b.Size
}
