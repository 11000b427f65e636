// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type DatasetsCfg struct {
	ViirsGadmDaily string
	ViirsGadmAll   string
	GadmSummary    string
	ViirsWdpaDaily string
	WdpaSummary    string
}

type CacheCfg struct {
	Driver    string
	TTL       time.Duration
	Size      int
	RedisAddr string
	OpTimeout time.Duration
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	Version    string

	GatewayURL      string
	DatasetsURI     string
	APIKey          string
	UpstreamTimeout time.Duration
	BreakerEnabled  bool
	Datasets        DatasetsCfg

	PeriodLabelStyle      string
	StrictModeFlags       bool
	MissingGeometryPolicy string
	LegacyConfidence      bool
	FeedH3Res             int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	Cache        CacheCfg
	Invalidation InvalidationCfg
}

func FromEnv() Config {
	gateway := strings.TrimRight(getenv("GATEWAY_URL", "http://localhost:9000"), "/")
	res := getint("FEED_H3_RES", -1)
	if res > 15 {
		res = -1
	}

	return Config{
		Addr:       getenv("ADDR", ":3600"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		Version:    getenv("VERSION", "dev"),

		GatewayURL:      gateway,
		DatasetsURI:     strings.TrimRight(getenv("DATASETS_URI", gateway+"/v1"), "/"),
		APIKey:          getenv("API_KEY", ""),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		BreakerEnabled:  getbool("BREAKER_ENABLED", true),
		Datasets: DatasetsCfg{
			ViirsGadmDaily: getenv("DATASET_VIIRS_GADM_DAILY_ID", ""),
			ViirsGadmAll:   getenv("DATASET_VIIRS_GADM_ALL_ID", ""),
			GadmSummary:    getenv("DATASET_GADM_SUMMARY_ID", ""),
			ViirsWdpaDaily: getenv("DATASET_VIIRS_WDPA_DAILY_ID", ""),
			WdpaSummary:    getenv("DATASET_WDPA_SUMMARY_ID", ""),
		},

		PeriodLabelStyle:      getenv("PERIOD_LABEL_STYLE", "week"),
		StrictModeFlags:       getbool("STRICT_MODE_FLAGS", true),
		MissingGeometryPolicy: getenv("MISSING_GEOMETRY_POLICY", "degrade"),
		LegacyConfidence:      getbool("LEGACY_CONFIDENCE", false),
		FeedH3Res:             res,

		RateLimitRequests: getint("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getduration("RATE_LIMIT_WINDOW", time.Minute),

		Cache: CacheCfg{
			Driver:    strings.ToLower(getenv("CACHE_DRIVER", "memory")),
			TTL:       getduration("CACHE_TTL", 30*time.Second),
			Size:      getint("CACHE_SIZE", 1024),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "viirs-dataset-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "viirs-cache-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
