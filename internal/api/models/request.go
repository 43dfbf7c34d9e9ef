package models

// MarketQuery filters GET /api/v1/market.
type MarketQuery struct {
	Port string `form:"port"`
	Size string `form:"size"`
	From string `form:"from"` // YYYY-MM-DD, inclusive
	To   string `form:"to"`   // YYYY-MM-DD, inclusive
}

// SeriesQuery selects one series for GET /api/v1/series.
type SeriesQuery struct {
	Port   string `form:"port" binding:"required"`
	Size   string `form:"size" binding:"required"`
	Window int    `form:"window"` // moving-average window, default 5
}
