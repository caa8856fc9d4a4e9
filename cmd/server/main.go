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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/adapters/metricsource"
	"github.com/frostdev-ops/alert-engine/internal/adapters/rulefile"
	"github.com/frostdev-ops/alert-engine/internal/adapters/transport"
	"github.com/frostdev-ops/alert-engine/internal/api"
	"github.com/frostdev-ops/alert-engine/internal/api/handlers"
	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/jobs"
	"github.com/frostdev-ops/alert-engine/internal/core/metrics"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
	"github.com/frostdev-ops/alert-engine/internal/database"
	"github.com/frostdev-ops/alert-engine/internal/database/sqlite"
	"github.com/frostdev-ops/alert-engine/internal/websocket"
	"github.com/frostdev-ops/alert-engine/pkg/logger"
	"github.com/frostdev-ops/alert-engine/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./configs/config.yaml or ./config.yaml)")
	watchRules := flag.Bool("watch-rules", false, "reload the rules file when it changes")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log.WithField("version", version.GetVersion()).Info("Starting alert engine")

	// Initialize database
	db, err := database.Initialize(cfg.Database, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
	}

	alertRepo := sqlite.NewAlertRepository(db, log.Logger)
	sampleRepo := sqlite.NewMetricSampleRepository(db, log.Logger)

	// Metric sources: pushed samples first, then host and Prometheus by prefix
	sources := metricsource.NewRouter(log.Logger, sampleRepo)
	if cfg.MetricSources.Host.Enabled {
		host := metricsource.NewHostSource(cfg.MetricSources.Host.Prefix)
		sources.Route(host.Prefix(), host)
	}
	if cfg.MetricSources.Prometheus.Enabled {
		prom, err := metricsource.NewPrometheusSource(cfg.MetricSources.Prometheus, log.Logger)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Prometheus metric source")
		}
		if len(cfg.MetricSources.Prometheus.Prefixes) == 0 {
			sources.AddFallback(prom)
		}
		for _, prefix := range cfg.MetricSources.Prometheus.Prefixes {
			sources.Route(prefix, prom)
		}
	}

	var source monitoring.MetricSource = sources
	var sourceCache *metricsource.CachedSource
	if cfg.MetricSources.CacheTTL > 0 {
		sourceCache = metricsource.NewCachedSource(sources, cfg.MetricSources.CacheTTL)
		source = sourceCache
	}

	// Engine metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(cfg.Metrics.Namespace, registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live event stream
	wsHub := websocket.NewHub(cfg.WebSocket, log.Logger)
	go wsHub.Run(ctx)
	if recorder != nil {
		recorder.ObserveGauge("websocket_clients", "Number of connected live stream clients", func() float64 {
			return float64(wsHub.GetClientCount())
		})
		if sourceCache != nil {
			recorder.ObserveGauge("metric_source_cache_hits", "Metric source lookups served from cache", func() float64 {
				return float64(sourceCache.Stats().Hits)
			})
		}
	}

	notifier := monitoring.NewNotificationRouter(alertRepo, log.Logger)
	enabled := transport.RegisterEnabled(notifier, cfg.Transports, log.Logger)
	log.WithField("transports", enabled).Info("Notification transports registered")

	deps := monitoring.Dependencies{
		Source:    source,
		Router:    notifier,
		Store:     alertRepo,
		Publisher: wsHub,
		Logger:    log.Logger,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	manager := monitoring.NewAlertManager(cfg.Alerting.ManagerConfig(), deps)

	if cfg.Alerting.RulesFile != "" {
		if _, err := manager.LoadRules(ctx, cfg.Alerting.RulesFile); err != nil {
			log.WithError(err).Fatal("Failed to load alert rules file")
		}
		if *watchRules {
			watcher := rulefile.NewWatcher(cfg.Alerting.RulesFile, manager, log.Logger)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.WithError(err).Error("Rules watcher stopped")
				}
			}()
		}
	}

	if err := manager.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start alert manager")
	}

	// Housekeeping
	var jobRecorder monitoring.Recorder
	if recorder != nil {
		jobRecorder = recorder
	}
	scheduler, err := jobs.NewScheduler(jobs.Config{
		PurgeSchedule:   cfg.Alerting.PurgeSchedule,
		SummarySchedule: cfg.Alerting.SummarySchedule,
		Retention:       cfg.Alerting.SampleRetention,
	}, alertRepo, sampleRepo, manager, jobRecorder, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to create housekeeping scheduler")
	}
	scheduler.Start()

	// Health
	health := metrics.NewHealthChecker(version.GetVersion(), 5*time.Second)
	health.Register("database", func(ctx context.Context) metrics.HealthStatus {
		if err := db.PingContext(ctx); err != nil {
			return metrics.NewHealthStatus(metrics.StatusUnhealthy, err.Error())
		}
		stats := db.Stats()
		return metrics.NewHealthStatus(metrics.StatusHealthy, "Database reachable").
			WithDetail("open_connections", stats.OpenConnections)
	})
	health.Register("alert_manager", func(context.Context) metrics.HealthStatus {
		status := metrics.NewHealthStatus(metrics.StatusHealthy, "Alert manager running").
			WithDetail("rules", len(manager.GetRules())).
			WithDetail("active_alerts", len(manager.GetActiveAlerts("")))
		if !cfg.Alerting.Enabled {
			status.Status = metrics.StatusDegraded
			status.Message = "Rule evaluation disabled"
		}
		return status
	})
	health.Register("websocket", func(context.Context) metrics.HealthStatus {
		return metrics.NewHealthStatus(metrics.StatusHealthy, "Hub running").
			WithDetail("clients", wsHub.GetClientCount())
	})

	h := handlers.NewHandlers(manager, sampleRepo, health, wsHub, log.Logger)
	routerOpts := api.Options{Gatherer: registry}
	if recorder != nil {
		routerOpts.Recorder = recorder
	}
	router := api.NewRouter(cfg, h, log, routerOpts)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	scheduler.Stop(shutdownCtx)
	manager.Stop()
	cancel()
	log.FlushPending()

	log.Info("Server exited")
}
