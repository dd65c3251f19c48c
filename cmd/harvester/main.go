package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/api"
	"github.com/JakeFAU/weather-harvester/internal/browser"
	"github.com/JakeFAU/weather-harvester/internal/cache"
	"github.com/JakeFAU/weather-harvester/internal/clock/system"
	"github.com/JakeFAU/weather-harvester/internal/config"
	"github.com/JakeFAU/weather-harvester/internal/id/uuid"
	"github.com/JakeFAU/weather-harvester/internal/logging"
	"github.com/JakeFAU/weather-harvester/internal/progress"
	"github.com/JakeFAU/weather-harvester/internal/progress/sinks"
	"github.com/JakeFAU/weather-harvester/internal/scheduler"
)

const hubCloseTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 when every day was harvested, 1 on
// any day failure or startup error.
func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	envPath := flag.String("env", ".env", "Path to dotenv file; missing is fine")
	flag.Parse()

	envLoaded, err := config.LoadEnvFile(*envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load env file failed: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	if envLoaded {
		logger.Debug("loaded env file", zap.String("path", *envPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := cfg.Targets()
	if err != nil {
		logger.Error("enumerate targets failed", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		logger.Error("prometheus sink init failed", zap.Error(err))
		return 1
	}
	status := sinks.NewStatusSink()
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		status,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	if cfg.Server.Port > 0 {
		srv := api.NewServer(status, reg, logger.Named("api"))
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Port); err != nil {
				logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	var mirror cache.Mirror
	if cfg.MirrorEnabled() {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("gcs client init failed", zap.Error(err))
			return 1
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("gcs client close failed", zap.Error(err))
			}
		}()
		gcsMirror, err := cache.NewGCSMirror(client, cfg.Cache.GCSConfig)
		if err != nil {
			logger.Error("gcs mirror init failed", zap.Error(err))
			return 1
		}
		mirror = gcsMirror
		logger.Info("mirroring cache to gcs", zap.String("bucket", cfg.Cache.Bucket))
	}
	writer, err := cache.New(cfg.Cache.Config, mirror, logger.Named("cache"))
	if err != nil {
		logger.Error("cache init failed", zap.Error(err))
		return 1
	}
	logger.Info("writing cache", zap.String("dir", writer.Dir()), zap.Int("targets", len(targets)))

	sched := scheduler.New(
		browser.NewLauncher(cfg.BrowserSettings(), logger.Named("browser")),
		writer,
		cfg.RetryPolicy(),
		hub,
		system.New(),
		uuid.New(),
		logger.Named("scheduler"),
	)

	summary, err := sched.Run(ctx, targets)
	if err != nil {
		logger.Error("harvest failed", zap.Error(err))
		return 1
	}
	for _, failure := range summary.Failures {
		logger.Error("day not harvested",
			zap.Int("month", failure.Target.Month),
			zap.Int("day", failure.Target.Day),
			zap.Error(failure.Err),
		)
	}
	if !summary.OK() {
		return 1
	}
	return 0
}
