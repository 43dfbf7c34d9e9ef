// Package api serves the dashboard: static files plus a read-only JSON API
// over the persisted market and news data.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"katsuo-market/internal/api/handlers"
	"katsuo-market/internal/api/middleware"
	"katsuo-market/internal/config"
	"katsuo-market/internal/data"
)

// NewRouter builds the dashboard handler from configuration.
func NewRouter(cfg *config.Config, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.NoCache())

	cache := data.NewDatasetCache(cfg.Server.CacheTTL)
	marketHandler := handlers.NewMarketHandler(cfg.Output.DataFile, cache, logger)
	newsHandler := handlers.NewNewsHandler(cfg.Output.NewsFile, logger)

	// Health check
	router.GET("/health", marketHandler.Health)

	authed := router.Group("/", middleware.BasicAuth(cfg.Server.AuthUser, cfg.Server.AuthPass))
	authed.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/web/index.html")
	})

	api := authed.Group("/api/v1")
	{
		api.GET("/market", marketHandler.Market)
		api.GET("/series", marketHandler.Series)
		api.GET("/summary", marketHandler.Summary)
		api.GET("/news", newsHandler.News)
	}

	// Serve the dashboard and the raw JSON files it fetches
	webDir := filepath.Join(cfg.Server.StaticDir, "web")
	if info, err := os.Stat(webDir); err == nil && info.IsDir() {
		authed.Static("/web", webDir)
		logger.Info("serving static files", zap.String("dir", webDir))
	} else {
		logger.Warn("static directory not found, skipping static file serving", zap.String("dir", webDir))
	}
	authed.StaticFile("/data/"+filepath.Base(cfg.Output.DataFile), cfg.Output.DataFile)
	authed.StaticFile("/data/"+filepath.Base(cfg.Output.NewsFile), cfg.Output.NewsFile)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)
}
