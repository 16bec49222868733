package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers    []string
	KafkaTopic      string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	// Baidu API configuration.
	BaiduAK         string
	BaiduHost       string
	BaiduScheme     string
	BaiduOutput     string
	BaiduTimeout    time.Duration
	BaiduProxy      string
	BaiduRPS        float64
	BaiduMaxRetries int
	BaiduCacheSize  int

	// Place harvest configuration.
	HarvestQueries  []string
	HarvestRegion   string
	HarvestBounds   string
	HarvestTag      string
	HarvestPageSize int
	HarvestInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	baiduTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("BAIDU_TIMEOUT", "10s"))
	if err != nil || baiduTimeout <= 0 {
		return nil, errors.New("invalid BAIDU_TIMEOUT")
	}

	harvestInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("HARVEST_INTERVAL", "0s"))
	if err != nil || harvestInterval < 0 {
		return nil, errors.New("invalid HARVEST_INTERVAL")
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("BAIDU_RPS", "0"), 64)
	if err != nil || rps < 0 {
		return nil, errors.New("invalid BAIDU_RPS")
	}

	maxRetries, err := parsePositiveInt("BAIDU_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	pageSize, err := parsePositiveInt("HARVEST_PAGE_SIZE", 20)
	if err != nil {
		return nil, err
	}
	if pageSize > 20 {
		return nil, errors.New("HARVEST_PAGE_SIZE must be at most 20")
	}

	cfg := &Config{
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "baidu-places"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		BaiduAK:         os.Getenv("BAIDU_AK"),
		BaiduHost:       sharedcfg.EnvOrDefault("BAIDU_HOST", "api.map.baidu.com"),
		BaiduScheme:     sharedcfg.EnvOrDefault("BAIDU_SCHEME", "http"),
		BaiduOutput:     sharedcfg.EnvOrDefault("BAIDU_OUTPUT", "json"),
		BaiduTimeout:    baiduTimeout,
		BaiduProxy:      os.Getenv("BAIDU_PROXY"),
		BaiduRPS:        rps,
		BaiduMaxRetries: maxRetries,
		BaiduCacheSize:  parseCacheSize(),

		HarvestQueries:  splitList(os.Getenv("HARVEST_QUERIES")),
		HarvestRegion:   os.Getenv("HARVEST_REGION"),
		HarvestBounds:   os.Getenv("HARVEST_BOUNDS"),
		HarvestTag:      os.Getenv("HARVEST_TAG"),
		HarvestPageSize: pageSize,
		HarvestInterval: harvestInterval,
	}

	if cfg.BaiduAK == "" {
		return nil, errors.New("BAIDU_AK is required")
	}
	if cfg.BaiduScheme != "http" && cfg.BaiduScheme != "https" {
		return nil, errors.New("BAIDU_SCHEME must be http or https")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.HarvestRegion != "" && cfg.HarvestBounds != "" {
		return nil, errors.New("set only one of HARVEST_REGION and HARVEST_BOUNDS")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

// parseCacheSize falls back to the default on bad input; 0 disables the cache.
func parseCacheSize() int {
	if s := os.Getenv("BAIDU_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 1000
}

// splitList splits on "|" so queries may contain commas.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
