package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katsuo-market/internal/model"
)

func TestAggregate(t *testing.T) {
	in := []model.PriceObservation{
		obs("2026-02-13", model.PortYaizu, "4.5kg上", 240, 50),
		obs("2026-02-13", model.PortYaizu, "2.5kg上", 230, 5),
		obs("2026-02-13", model.PortYaizu, "4.5kg上", 250, 30),
	}

	out := Aggregate(in)
	require.Len(t, out, 2)

	byKey := map[model.Key]model.PriceObservation{}
	for _, o := range out {
		byKey[o.Key()] = o
	}
	big := byKey[model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "4.5kg上"}]
	assert.Equal(t, 245.0, big.Price)
	assert.Equal(t, 80.0, big.Volume)

	small := byKey[model.Key{Date: "2026-02-13", Port: model.PortYaizu, Size: "2.5kg上"}]
	assert.Equal(t, 230.0, small.Price)
	assert.Equal(t, 5.0, small.Volume)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestAggregate_StaysFinite(t *testing.T) {
	in := []model.PriceObservation{
		obs("2026-02-13", model.PortYaizu, "4.5kg上", math.MaxFloat64, math.MaxFloat64),
		obs("2026-02-13", model.PortYaizu, "4.5kg上", math.MaxFloat64, math.MaxFloat64),
	}

	out := Aggregate(in)
	require.Len(t, out, 1)
	assert.False(t, math.IsInf(out[0].Price, 0))
	assert.False(t, math.IsInf(out[0].Volume, 0))
	assert.Equal(t, math.MaxFloat64, out[0].Price)
	assert.Equal(t, math.MaxFloat64, out[0].Volume)
}
