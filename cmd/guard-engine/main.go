package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-guard/internal/api"
	"github.com/miradorstack/mirador-guard/internal/cache"
	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/fuse"
	"github.com/miradorstack/mirador-guard/internal/metrics"
	"github.com/miradorstack/mirador-guard/internal/monitor"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/sampler"
	"github.com/miradorstack/mirador-guard/internal/services"
	"github.com/miradorstack/mirador-guard/internal/snapshot"
	"github.com/miradorstack/mirador-guard/internal/stability"
	"github.com/miradorstack/mirador-guard/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting mirador-guard", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		if cfg.Cache.Addr != "" {
			provider, err := cache.NewRedisProvider(cfg.Cache)
			if err != nil {
				logger.Warn("redis cache unavailable, falling back to in-memory", slog.Any("error", err))
				cacheProvider = cache.NewMemoryProvider()
			} else {
				cacheProvider = provider
			}
		} else {
			cacheProvider = cache.NewMemoryProvider()
		}
	}
	defer cacheProvider.Close()

	snapshots, err := snapshot.NewStore(cfg.Snapshot.Dir, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", slog.Any("error", err))
		os.Exit(1)
	}

	ruleEngine, err := stability.NewRuleEngine(cfg.Stability.RulesPath, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}
	evaluator := stability.NewEvaluator(cfg.Stability, ruleEngine, logger)

	store := recorder.NewStore(cfg.Recorder.MaxSamplesPerMetric)
	restoreHistory(store, evaluator, snapshots, logger)
	rec := recorder.NewRecorder(logger, store, cfg.Recorder)
	rec.SetObserver(evaluator)

	systemSampler, err := sampler.NewSystemSampler("/", logger)
	if err != nil {
		logger.Error("failed to initialise resource sampler", slog.Any("error", err))
		os.Exit(1)
	}

	registry := fuse.NewActionRegistry(fuse.RegistryOptions{
		Snapshots:  snapshots,
		Resources:  systemSampler,
		AlertPath:  filepath.Join(cfg.Snapshot.Dir, "alerts.log"),
		TempDir:    cfg.Snapshot.TempDir,
		TempMaxAge: cfg.Snapshot.TempMaxAge,
	}, logger)

	controller, err := fuse.NewController(cfg.Fuses, systemSampler, registry, logger)
	if err != nil {
		logger.Error("failed to configure fuses", slog.Any("error", err))
		os.Exit(1)
	}
	defer controller.Stop()

	guardService := services.NewGuardService(logger, rec, evaluator, controller, cacheProvider, cfg.Cache.StatusTTL)

	scheduler := monitor.NewScheduler(*cfg, monitor.Options{
		Recorder:  rec,
		Evaluator: evaluator,
		Fuses:     controller,
		Sampler:   systemSampler,
		Snapshots: snapshots,
		Service:   guardService,
	}, logger)

	handler := api.NewHandler(guardService, registry.Gate(), time.Hour, logger)
	server := api.NewServer(cfg.Server, handler.Routes(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start monitor loops", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := scheduler.Stop(); err != nil {
		logger.Warn("monitor loops shutdown", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Save final history so a restart warm-starts from recent data.
	if err := snapshots.SavePerformance(store.PerformanceSince(time.Time{})); err != nil {
		logger.Warn("final performance save failed", slog.Any("error", err))
	}
	if err := snapshots.SaveQuality(store.QualitySince(time.Time{})); err != nil {
		logger.Warn("final quality save failed", slog.Any("error", err))
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("mirador-guard stopped")
}

// restoreHistory warm-starts the store from the last autosaved snapshots.
// Performance samples also flow through the evaluator so its baselines
// reseed from the restored history instead of the first live reading.
func restoreHistory(store *recorder.Store, evaluator *stability.Evaluator, snapshots *snapshot.Store, logger *slog.Logger) {
	performance, err := snapshots.LoadPerformance()
	if err != nil {
		logger.Warn("performance history restore failed", slog.Any("error", err))
	} else {
		for _, samples := range performance {
			for _, sample := range samples {
				store.AppendPerformance(sample)
				evaluator.Observe(sample)
			}
		}
	}
	quality, err := snapshots.LoadQuality()
	if err != nil {
		logger.Warn("quality history restore failed", slog.Any("error", err))
	} else {
		for _, samples := range quality {
			for _, sample := range samples {
				store.AppendQuality(sample)
			}
		}
	}
}
