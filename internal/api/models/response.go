package models

// SummaryResponse is the latest-day overview shown at the top of the dashboard.
type SummaryResponse struct {
	Ports    []PortSummary `json:"ports"`
	Rankings []SizeSummary `json:"rankings"`
}

// PortSummary contains one port's latest trading day
type PortSummary struct {
	Port       string        `json:"port"`
	LatestDate string        `json:"latest_date"`
	Sizes      []SizeSummary `json:"sizes"`
}

// SizeSummary is one size row; pointer fields are null when absent.
type SizeSummary struct {
	Port          string   `json:"port"`
	Size          string   `json:"size"`
	Price         *float64 `json:"price"`
	Volume        *float64 `json:"volume"`
	PreviousDate  string   `json:"previous_date,omitempty"`
	PreviousPrice *float64 `json:"previous_price"`
	Change        *float64 `json:"change"`
}

// SeriesResponse is one (port, size) series with its moving average.
type SeriesResponse struct {
	Port   string        `json:"port"`
	Size   string        `json:"size"`
	Window int           `json:"window"`
	Points []SeriesPoint `json:"points"`
}

// SeriesPoint represents one chart point
type SeriesPoint struct {
	Date          string  `json:"date"`
	Price         float64 `json:"price"`
	Volume        float64 `json:"volume"`
	MovingAverage float64 `json:"moving_average"`
}

// NewsResponse wraps the news store.
type NewsResponse struct {
	Items []NewsItem `json:"items"`
	Count int        `json:"count"`
}

// NewsItem mirrors a stored news record.
type NewsItem struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// HealthResponse reports liveness and dataset freshness.
type HealthResponse struct {
	Status       string `json:"status"`
	Observations int    `json:"observations"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewError builds an ErrorResponse.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
