package pipeline

import "katsuo-market/internal/model"

const (
	DefaultLowBound  = 10.0
	DefaultHighBound = 600.0
)

// Bounds is the plausible price band for fresh observations, exclusive on
// both ends.
type Bounds struct {
	Low  float64
	High float64
}

func DefaultBounds() Bounds {
	return Bounds{Low: DefaultLowBound, High: DefaultHighBound}
}

// Accept reports whether the observation's price lies strictly inside the band.
func (b Bounds) Accept(o model.PriceObservation) bool {
	return o.Price > b.Low && o.Price < b.High
}

// Filter keeps the accepted observations and returns how many were dropped.
func (b Bounds) Filter(obs []model.PriceObservation) ([]model.PriceObservation, int) {
	out := make([]model.PriceObservation, 0, len(obs))
	for _, o := range obs {
		if b.Accept(o) {
			out = append(out, o)
		}
	}
	return out, len(obs) - len(out)
}
