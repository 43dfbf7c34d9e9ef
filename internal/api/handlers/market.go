package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"katsuo-market/internal/analysis"
	"katsuo-market/internal/api/models"
	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
)

// MarketHandler serves the persisted market dataset.
type MarketHandler struct {
	path   string
	cache  *data.DatasetCache
	logger *zap.Logger
}

// NewMarketHandler creates a market handler reading path through cache.
func NewMarketHandler(path string, cache *data.DatasetCache, logger *zap.Logger) *MarketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketHandler{path: path, cache: cache, logger: logger}
}

func (h *MarketHandler) load(c *gin.Context) (model.Dataset, bool) {
	ds, err := h.cache.Load(h.path)
	if err != nil {
		h.logger.Error("dataset load failed", zap.String("path", h.path), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.NewError("DATASET_UNAVAILABLE", "market data could not be loaded"))
		return nil, false
	}
	return ds, true
}

// Market handles GET /api/v1/market
func (h *MarketHandler) Market(c *gin.Context) {
	var q models.MarketQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := model.ParseDate(d); err != nil {
			c.JSON(http.StatusBadRequest, models.NewError("INVALID_DATE", "from/to must be in YYYY-MM-DD format"))
			return
		}
	}

	ds, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, filterDataset(ds, q))
}

// filterDataset returns the part of ds matching q. The cached dataset is
// shared, so matching series are copied.
func filterDataset(ds model.Dataset, q models.MarketQuery) model.Dataset {
	if q == (models.MarketQuery{}) {
		return ds
	}
	out := model.Dataset{}
	for port, sizes := range ds {
		if q.Port != "" && string(port) != q.Port {
			continue
		}
		for size, series := range sizes {
			if q.Size != "" && size != q.Size {
				continue
			}
			var kept []model.PriceObservation
			for _, o := range series {
				d := o.Date.Format(model.DateLayout)
				if (q.From != "" && d < normalizeDate(q.From)) || (q.To != "" && d > normalizeDate(q.To)) {
					continue
				}
				kept = append(kept, o)
			}
			if len(kept) == 0 {
				continue
			}
			if out[port] == nil {
				out[port] = map[string][]model.PriceObservation{}
			}
			out[port][size] = kept
		}
	}
	return out
}

func normalizeDate(s string) string {
	t, err := model.ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(model.DateLayout)
}

// Series handles GET /api/v1/series
func (h *MarketHandler) Series(c *gin.Context) {
	var q models.SeriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	if q.Window <= 0 {
		q.Window = analysis.DefaultMovingAverageWindow
	}

	ds, ok := h.load(c)
	if !ok {
		return
	}
	series := ds[model.Port(q.Port)][q.Size]
	if len(series) == 0 {
		c.JSON(http.StatusNotFound, models.NewError("SERIES_NOT_FOUND", "no data for "+q.Port+" "+q.Size))
		return
	}

	ma := analysis.MovingAverage(series, q.Window)
	points := make([]models.SeriesPoint, len(series))
	for i, o := range series {
		points[i] = models.SeriesPoint{
			Date:          o.Date.Format(model.DateLayout),
			Price:         model.RoundPrice(o.Price),
			Volume:        o.Volume,
			MovingAverage: ma[i],
		}
	}
	c.JSON(http.StatusOK, models.SeriesResponse{
		Port:   q.Port,
		Size:   q.Size,
		Window: q.Window,
		Points: points,
	})
}

// Summary handles GET /api/v1/summary
func (h *MarketHandler) Summary(c *gin.Context) {
	ds, ok := h.load(c)
	if !ok {
		return
	}

	summaries := analysis.Summarize(ds)
	resp := models.SummaryResponse{
		Ports:    make([]models.PortSummary, 0, len(summaries)),
		Rankings: []models.SizeSummary{},
	}
	for _, ps := range summaries {
		row := models.PortSummary{
			Port:       string(ps.Port),
			LatestDate: ps.LatestDate.Format(model.DateLayout),
			Sizes:      make([]models.SizeSummary, 0, len(ps.Sizes)),
		}
		for _, s := range ps.Sizes {
			row.Sizes = append(row.Sizes, toSizeSummary(s))
		}
		resp.Ports = append(resp.Ports, row)
	}
	for _, s := range analysis.RankByChange(summaries) {
		resp.Rankings = append(resp.Rankings, toSizeSummary(s))
	}
	c.JSON(http.StatusOK, resp)
}

func toSizeSummary(s analysis.SizeSummary) models.SizeSummary {
	out := models.SizeSummary{Port: string(s.Port), Size: s.Size}
	if s.Latest != nil {
		price := model.RoundPrice(s.Latest.Price)
		volume := s.Latest.Volume
		out.Price = &price
		out.Volume = &volume
	}
	if s.Previous != nil {
		prev := model.RoundPrice(s.Previous.Price)
		out.PreviousPrice = &prev
		out.PreviousDate = s.Previous.Date.Format(model.DateLayout)
	}
	if s.HasChange {
		change := s.Change
		out.Change = &change
	}
	return out
}

// Health handles GET /health
func (h *MarketHandler) Health(c *gin.Context) {
	resp := models.HealthResponse{Status: "ok"}
	if ds, err := h.cache.Load(h.path); err == nil {
		resp.Observations = ds.Len()
	} else {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}
