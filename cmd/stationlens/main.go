package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rxtx-hosting/stationlens/internal/config"
	"github.com/rxtx-hosting/stationlens/pkg/exporter"
	"github.com/rxtx-hosting/stationlens/pkg/scheduler"
	"github.com/rxtx-hosting/stationlens/pkg/serverlist"
)

var version = "dev"

var (
	configPath = flag.String("config", "/etc/stationlens/config.yaml", "Path to configuration file")
	portFlag   = flag.String("port", "", "Port for the metrics endpoint (overrides config and PORT)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	port := os.Getenv("PORT")
	if *portFlag != "" {
		port = *portFlag
	}
	if port != "" {
		if err := cfg.OverridePort(port); err != nil {
			log.Fatalf("Failed to apply port override: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting stationlens", "version", version, "upstream", cfg.UpstreamURL, "interval", cfg.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := serverlist.NewClient(cfg.UpstreamURL, cfg.FetchTimeout, cfg.MaxBodyBytes, "stationlens/"+version)
	registry := exporter.NewRegistry(cfg.RuntimeMetrics)
	sched := scheduler.New(client, registry, cfg.PollInterval)

	var refresher exporter.Refresher
	if cfg.RefreshOnScrape {
		refresher = sched
	}
	metricsServer := exporter.NewMetricsServer(cfg.PrometheusAddr, cfg.MetricsPath, registry, refresher)

	go func() {
		slog.Info("Starting Prometheus server", "address", cfg.PrometheusAddr, "path", cfg.MetricsPath)
		if err := metricsServer.StartServer(); err != nil {
			log.Fatalf("Failed to start Prometheus server: %v", err)
		}
	}()

	var apiServer *exporter.APIServer
	if cfg.APIAddr != "" {
		apiServer = exporter.NewAPIServer(cfg.APIAddr, registry, sched)
		go func() {
			slog.Info("Starting API server", "address", cfg.APIAddr)
			if err := apiServer.StartServer(); err != nil {
				log.Fatalf("Failed to start API server: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("stationlens started successfully")

	<-sigCh
	slog.Info("Received shutdown signal, cleaning up...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down Prometheus server", "error", err)
	}
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down API server", "error", err)
		}
	}
}
