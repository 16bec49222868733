package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/baidu"
	"github.com/couchcryptid/baidu-place-harvester/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/baidu-place-harvester/internal/adapter/kafka"
	"github.com/couchcryptid/baidu-place-harvester/internal/config"
	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/harvest"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	client, err := baidu.NewClient(clientConfig(cfg), logger, metrics)
	if err != nil {
		logger.Error("failed to create baidu client", "error", err)
		os.Exit(1)
	}

	var geocoder domain.Geocoder = client
	if cfg.BaiduCacheSize > 0 {
		geocoder = baidu.NewCachedGeocoder(client, cfg.BaiduCacheSize, metrics)
		logger.Info("geocoding cache enabled", "cache_size", cfg.BaiduCacheSize)
	}

	filter, err := harvestFilter(cfg)
	if err != nil {
		logger.Error("invalid harvest filter", "error", err)
		os.Exit(1)
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	h := harvest.New(client, writer, logger, metrics, cfg.BatchSize, harvest.Job{
		Queries:  cfg.HarvestQueries,
		Filter:   filter,
		Tag:      cfg.HarvestTag,
		PageSize: cfg.HarvestPageSize,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, h, geocoder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start harvester.
	if len(cfg.HarvestQueries) > 0 {
		go func() {
			if err := h.Run(ctx, cfg.HarvestInterval); err != nil {
				logger.Error("harvester error", "error", err)
			}
		}()
	} else {
		logger.Info("no HARVEST_QUERIES set, serving lookups only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func clientConfig(cfg *config.Config) baidu.Config {
	retry := baidu.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.BaiduMaxRetries
	return baidu.Config{
		AccessKey:         cfg.BaiduAK,
		Host:              cfg.BaiduHost,
		Scheme:            cfg.BaiduScheme,
		Output:            cfg.BaiduOutput,
		Timeout:           cfg.BaiduTimeout,
		ProxyURL:          cfg.BaiduProxy,
		RequestsPerSecond: cfg.BaiduRPS,
		Retry:             retry,
	}
}

func harvestFilter(cfg *config.Config) (baidu.RegionFilter, error) {
	switch {
	case cfg.HarvestBounds != "":
		return baidu.ParseBounds(cfg.HarvestBounds)
	case cfg.HarvestRegion != "":
		return baidu.InRegion(cfg.HarvestRegion), nil
	case len(cfg.HarvestQueries) > 0:
		return baidu.RegionFilter{}, errors.New("HARVEST_REGION or HARVEST_BOUNDS is required with HARVEST_QUERIES")
	}
	return baidu.RegionFilter{}, nil
}
