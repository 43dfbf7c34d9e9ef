package analysis

import "katsuo-market/internal/model"

// DefaultMovingAverageWindow is the trailing window drawn on the price chart.
const DefaultMovingAverageWindow = 5

// MovingAverage returns the trailing mean price for each observation. Until
// the window fills, the mean covers the observations seen so far. A window
// below 1 uses DefaultMovingAverageWindow.
func MovingAverage(series []model.PriceObservation, window int) []float64 {
	if window < 1 {
		window = DefaultMovingAverageWindow
	}
	out := make([]float64, len(series))
	sum := 0.0
	for i, o := range series {
		sum += o.Price
		if i >= window {
			sum -= series[i-window].Price
		}
		n := min(i+1, window)
		out[i] = model.RoundPrice(sum / float64(n))
	}
	return out
}
