package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/viirs-active-fires/internal/alerts"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/config"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/executor"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/httpclient"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/router"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/server"
	"github.com/mohammed-shakir/viirs-active-fires/internal/download"
	"github.com/mohammed-shakir/viirs-active-fires/internal/geostore"
	"github.com/mohammed-shakir/viirs-active-fires/internal/invalidation"
	"github.com/mohammed-shakir/viirs-active-fires/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/viirs-active-fires/internal/logger"
	h3mapper "github.com/mohammed-shakir/viirs-active-fires/internal/mapper/h3"
	"github.com/mohammed-shakir/viirs-active-fires/internal/period"
	"github.com/mohammed-shakir/viirs-active-fires/internal/query"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// dotenv files are optional and never override the real environment.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if Version != "dev" {
		cfg.Version = Version
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "viirs-active-fires",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(cfg.Version)
	appLog.Info("starting viirs-active-fires",
		"addr", cfg.Addr,
		"version", cfg.Version,
		"gateway", cfg.GatewayURL,
		"cache", cfg.Cache.Driver,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := httpclient.NewOutbound(cfg.UpstreamTimeout)
	upstream := func(name string) (*httpclient.Upstream, error) {
		opts := []httpclient.Option{httpclient.WithAPIKey(cfg.APIKey)}
		if cfg.BreakerEnabled {
			opts = append(opts, httpclient.WithBreaker(httpclient.NewBreaker(name, appLog)))
		}
		return httpclient.NewUpstream(name, cfg.GatewayURL+"/v1", client, opts...)
	}
	datasetUp, err := upstream("dataset")
	if err != nil {
		appLog.Error("dataset upstream", "err", err)
		return 1
	}
	geostoreUp, err := upstream("geostore")
	if err != nil {
		appLog.Error("geostore upstream", "err", err)
		return 1
	}

	exec := executor.New(appLog, datasetUp)
	geo := geostore.New(appLog, geostoreUp)

	engineCfg := alerts.Config{
		Datasets: alerts.Datasets{
			GadmDaily:   cfg.Datasets.ViirsGadmDaily,
			GadmAll:     cfg.Datasets.ViirsGadmAll,
			GadmSummary: cfg.Datasets.GadmSummary,
			WdpaDaily:   cfg.Datasets.ViirsWdpaDaily,
			WdpaSummary: cfg.Datasets.WdpaSummary,
		},
		LabelStyle:      period.ParseStyle(cfg.PeriodLabelStyle),
		StrictModeFlags: cfg.StrictModeFlags,
		MissingGeometry: alerts.ParseGeometryPolicy(cfg.MissingGeometryPolicy),
		Confidence:      query.ConfidenceCurrent,
	}
	if cfg.LegacyConfidence {
		engineCfg.Confidence = query.ConfidenceLegacy
	}

	var engineOpts []alerts.EngineOption
	if cfg.FeedH3Res >= 0 {
		m, err := h3mapper.New(cfg.FeedH3Res)
		if err != nil {
			appLog.Error("h3 mapper", "err", err, "res", cfg.FeedH3Res)
			return 1
		}
		engineOpts = append(engineOpts, alerts.WithFeedAnnotator(m))
	}

	apis := make([]*router.Handler, 0, 2)
	for _, v := range []struct {
		version router.Version
		formats []string
	}{
		{router.V1, download.FormatsV1},
		{router.V2, download.FormatsV2},
	} {
		deriver := download.NewDeriver(cfg.DatasetsURI, v.formats)
		eng := alerts.New(appLog.With("api", v.version.Name), exec, geo, deriver, engineCfg, engineOpts...)
		apis = append(apis, router.New(eng, v.version, appLog))
	}

	store := openCache(ctx, cfg.Cache, appLog)
	if c, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	deps := server.Deps{APIs: apis, Cache: store, Started: time.Now()}

	if cfg.Invalidation.Enabled {
		watch := invalidation.NewWatchlist(
			cfg.Datasets.ViirsGadmDaily,
			cfg.Datasets.ViirsGadmAll,
			cfg.Datasets.GadmSummary,
			cfg.Datasets.ViirsWdpaDaily,
			cfg.Datasets.WdpaSummary,
		)
		consumer := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, store, watch,
			kafkaconsumer.WithEventLog(&zl))
		deps.Ready = consumer
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
