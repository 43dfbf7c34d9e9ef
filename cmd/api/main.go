package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"katsuo-market/internal/api"
	"katsuo-market/internal/config"
	"katsuo-market/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(os.Getenv("KATSUO_CONFIG"))
	if err != nil {
		return err
	}

	// API_PORT overrides the configured address
	if port := os.Getenv("API_PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	logger, err := logging.New(cfg.Logging.Level, os.Getenv("API_DEBUG") != "")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if _, err := os.Stat(cfg.Server.StaticDir); err != nil {
		logger.Warn("static directory not found, dashboard pages will 404",
			zap.String("static_dir", cfg.Server.StaticDir), zap.Error(err))
	}
	if cfg.Server.AuthUser == "" {
		logger.Warn("basic auth disabled: AUTH_USER not set")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting dashboard server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("data_file", cfg.Output.DataFile),
			zap.String("news_file", cfg.Output.NewsFile))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
