package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/writify/writify/internal/appid"
	errwrap "github.com/writify/writify/internal/errors"
	"github.com/writify/writify/internal/metrics"
	"github.com/writify/writify/internal/observability"
	"github.com/writify/writify/internal/server"
	"github.com/writify/writify/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
	serveOffline bool
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply gateway changes)

Queued gateway requests are abandoned once the HTTP server has stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		observability.InitServerLogger(appid.BinaryName, cfg.Logging.Level, cfg.Logging.Profile)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(appid.BinaryName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		gatewayCtx, cancelGateway := context.WithCancel(context.Background())
		defer cancelGateway()

		rt, err := buildRuntime(cmd.Context(), cfg, runtimeOptions{
			logger:  logger,
			store:   true,
			offline: serveOffline,
			metrics: cfg.Metrics.Enabled,
			baseCtx: gatewayCtx,
		})
		if err != nil {
			logger.Error("Failed to initialize services", zap.Error(err))
			return err
		}

		policy := rt.gateway.Policy()
		logger.Info("Initializing server",
			zap.String("service", appid.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("addr", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", cfg.Metrics.Port),
			zap.String("store_driver", rt.store.Driver()),
			zap.Int("hourly_request_limit", policy.HourlyRequestLimit),
			zap.Duration("min_request_interval", policy.MinRequestInterval),
			zap.Bool("offline", rt.gateway.FallbackActive()))

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("store", rt.store)
		hm.RegisterChecker("gateway", handlers.GatewayChecker(rt.gateway))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		handlers.SetAppIdentity(appid.Get())
		api := handlers.NewAPI(handlers.APIConfig{
			Service:  rt.service,
			Gateway:  rt.gateway,
			Store:    rt.store,
			Exporter: rt.exporter,
			Logger:   logger,
		})
		srv := server.New(cfg.Server, api, hm)
		metrics.SetServerStartTime(time.Now().Unix())

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			cancelGateway()
			if err := rt.Close(); err != nil {
				logger.Warn("Failed to close store", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: re-reading config file")
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "config reload failed")
			}
			logger.Info("Configuration re-read; gateway policy changes apply after restart",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 3000, "server port")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "start in fallback mode without calling the AI provider")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
