package model

// NewsItem is one summarized article in the news store.
type NewsItem struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
}
