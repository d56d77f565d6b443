package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahmed11551/tasbih/internal/adapters/http/api"
	"github.com/ahmed11551/tasbih/internal/app"
	"github.com/ahmed11551/tasbih/internal/config"
	"github.com/ahmed11551/tasbih/internal/domain/abuse"
	"github.com/ahmed11551/tasbih/internal/perf"
	"github.com/ahmed11551/tasbih/pkg/logger"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout          = 10 * time.Second
	writeTimeout         = 10 * time.Second
	idleTimeout          = 60 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 30 * time.Second
	queueMetricsInterval = 5 * time.Second
)

func main() {
	// Our custom registry already carries the service metrics; the
	// default Go collectors would duplicate them on /healthz.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithSQLitePath(cfg.DBPath),
		app.WithQueueCapacity(cfg.WebhookQueueSize),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRecentEventCount(cfg.RecentEventCount),
		app.WithAbuseOptions(
			abuse.WithWindow(time.Duration(cfg.BurstWindowMS)*time.Millisecond),
			abuse.WithThreshold(cfg.BurstThreshold),
		),
		app.WithPerfOptions(
			perf.WithCapacity(cfg.PerfCapacity),
			perf.WithRetention(time.Duration(cfg.PerfRetentionMin)*time.Minute),
			perf.WithSlowThreshold(time.Duration(cfg.SlowThresholdMS)*time.Millisecond),
		),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startQueueMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startQueueMetricsUpdater periodically exports queue depth gauges.
func startQueueMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(queueMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.GetStats()
			if queueLen, ok := stats["queueLength"].(int); ok {
				metrics.UpdateQueueSize(queueLen)
			}
		}
	}
}
