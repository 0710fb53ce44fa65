package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/config"
	"github.com/eddiefleurent/strategy_lab/internal/dashboard"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Server stopped successfully")
}

// loadConfig reads configPath, falling back to defaults when the file does
// not exist.
func loadConfig(configPath string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Config file %s not found, using defaults with mock quotes", configPath)
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	quotes, err := marketdata.FromConfig(cfg.MarketData, logger)
	if err != nil {
		return fmt.Errorf("market data: %w", err)
	}
	logger.Infof("Quote sources: %s", quotes.Name())

	store, err := storage.NewStorage(cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}

	srv := dashboard.NewServer(dashboard.Config{
		Port:              cfg.Server.Port,
		AuthToken:         cfg.Server.AuthToken,
		RequestTimeout:    cfg.GetRequestTimeout(),
		RiskFreeRate:      cfg.Pricing.Rate(),
		DefaultVolatility: cfg.Pricing.DefaultVolatility,
		Analysis:          cfg.AnalysisOptions(),
		DaysToExpiry:      cfg.Analysis.DaysToExpiry,
		Symbol:            cfg.MarketData.Symbol,
	}, store, quotes, logger)
	if cfg.Server.AuthToken == "" {
		logger.Warn("No auth token configured, API is unauthenticated")
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("saving journal: %w", err)
	}
	return nil
}
