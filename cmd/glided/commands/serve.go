package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ngpal/glide/internal/config"
	"github.com/ngpal/glide/internal/metrics"
	metricsprom "github.com/ngpal/glide/internal/metrics/prometheus"
	"github.com/ngpal/glide/internal/server"
	"github.com/ngpal/glide/internal/session"
)

var (
	flagAddr            string
	flagStagingRoot     string
	flagShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the glide rendezvous server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "bind address (default :7878)")
	serveCmd.Flags().StringVar(&flagStagingRoot, "staging-root", "", "directory staged files are written under (default ./staging)")
	serveCmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 0, "max time to wait for in-flight sessions on shutdown (default 10s)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)

	logger := newLogger(cfg.Logging)
	logger.Info("configuration loaded", "addr", cfg.Addr, "staging_root", cfg.StagingRoot)

	var m metrics.ServerMetrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		m = metricsprom.New(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsprom.Handler(registry))
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		logger.Info("metrics enabled", "addr", cfg.Metrics.Addr)
	}

	srv := server.New(cfg.Addr, cfg.StagingRoot, cfg.ShutdownTimeout, session.Config{ChunkSize: cfg.ChunkSize}, logger, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with an error", "err", err)
		return err
	}
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagStagingRoot != "" {
		cfg.StagingRoot = flagStagingRoot
	}
	if flagShutdownTimeout != 0 {
		cfg.ShutdownTimeout = flagShutdownTimeout
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
