package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"katsuo-market/internal/api/models"
	"katsuo-market/internal/news"
)

// NewsHandler serves the news store.
type NewsHandler struct {
	path   string
	logger *zap.Logger
}

func NewNewsHandler(path string, logger *zap.Logger) *NewsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsHandler{path: path, logger: logger}
}

// News handles GET /api/v1/news
func (h *NewsHandler) News(c *gin.Context) {
	items, err := news.Load(h.path)
	if err != nil {
		h.logger.Error("news load failed", zap.String("path", h.path), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.NewError("NEWS_UNAVAILABLE", "news could not be loaded"))
		return
	}

	resp := models.NewsResponse{Items: make([]models.NewsItem, 0, len(items)), Count: len(items)}
	for _, it := range items {
		resp.Items = append(resp.Items, models.NewsItem{
			ID:       it.ID,
			Date:     it.Date,
			Title:    it.Title,
			Source:   it.Source,
			URL:      it.URL,
			Category: it.Category,
			Summary:  it.Summary,
		})
	}
	c.JSON(http.StatusOK, resp)
}
