package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdeck/kube-triage/internal/api"
	"github.com/opsdeck/kube-triage/internal/cache"
	"github.com/opsdeck/kube-triage/internal/config"
	"github.com/opsdeck/kube-triage/internal/engine"
	"github.com/opsdeck/kube-triage/internal/extractors"
	"github.com/opsdeck/kube-triage/internal/metrics"
	"github.com/opsdeck/kube-triage/internal/patterns"
	"github.com/opsdeck/kube-triage/internal/repo"
	"github.com/opsdeck/kube-triage/internal/services"
	"github.com/opsdeck/kube-triage/internal/utils"
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

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting kube-triage", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-memory fallback", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	clusterClient, err := repo.NewClusterClient(repo.ClusterConfig{
		Kubeconfig:     cfg.Cluster.Kubeconfig,
		Context:        cfg.Cluster.Context,
		RequestTimeout: cfg.Cluster.RequestTimeout,
		ClusterInfoTTL: cfg.Cache.ClusterInfoTTL,
	}, cacheProvider, logger)
	if err != nil {
		logger.Error("failed to create cluster client", slog.Any("error", err))
		os.Exit(1)
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	pipeline := engine.NewPipeline(
		logger,
		clusterClient,
		ruleEngine,
		extractors.NewEventExtractor(cfg.Cluster.EventWindow),
		engine.Options{
			ConfidenceThreshold: cfg.Diagnosis.ConfidenceThreshold,
			MaxProposals:        cfg.Diagnosis.MaxProposals,
		},
	)

	historyStore := repo.NewHistoryStore(cacheProvider, cfg.Diagnosis.HistorySize, logger)
	miner := patterns.NewMiner(logger, nil)
	diagnostics := services.NewDiagnosticsService(logger, pipeline, historyStore, miner)

	handler := api.NewHandler(diagnostics, logger)
	server := api.NewServer(cfg.Server, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("kube-triage stopped")
}
