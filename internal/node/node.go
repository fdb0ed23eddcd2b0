// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/snap"
	"github.com/blinklabs-io/snap/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AppOptions maps the loaded config onto app options. The API server is not
// enabled here.
func AppOptions(cfg *config.Config, logger *slog.Logger) []snap.ConfigOptionFunc {
	return []snap.ConfigOptionFunc{
		snap.WithLogger(logger),
		snap.WithDatabasePath(cfg.DatabasePath),
		snap.WithBlobPlugin(cfg.BlobPlugin),
		snap.WithMetadataPlugin(cfg.MetadataPlugin),
		snap.WithChainConfig(cfg.Chain),
		snap.WithSeriesLock(
			cfg.Series.Lock,
			cfg.Series.RedisURL,
			cfg.Series.LockTTL,
		),
		snap.WithMaxCodesPerBatch(cfg.Series.MaxCodesPerBatch),
		snap.WithKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.TopicPrefix),
		snap.WithUploadLimits(cfg.Upload.MaxSize, cfg.Upload.ContentTypes),
		snap.WithTracing(cfg.Tracing.Enabled),
		snap.WithTracingStdout(cfg.Tracing.Stdout),
		snap.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
}

// Open builds an app for a one-shot command. Nothing runs in the background
// and metrics go to a private registry. The caller must call Stop.
func Open(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*snap.App, error) {
	opts := AppOptions(cfg, logger)
	opts = append(opts, snap.WithPrometheusRegistry(prometheus.NewRegistry()))
	app, err := snap.New(snap.NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	if err := app.Open(ctx); err != nil {
		if stopErr := app.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
		}
		return nil, err
	}
	return app, nil
}

// Run serves the API, the reconcile sweep and metrics until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts := AppOptions(cfg, logger)
	opts = append(
		opts,
		snap.WithApi(cfg.Api.Host, cfg.Api.Port),
		snap.WithApiSocketPath(cfg.Api.SocketPath),
		snap.WithApiMaxInFlightPerIP(cfg.Api.MaxInFlightPerIP),
		snap.WithApiReuseAddress(cfg.Api.ReuseAddress),
		snap.WithApiTlsCertFilePath(cfg.Api.TlsCertFilePath),
		snap.WithApiTlsKeyFilePath(cfg.Api.TlsKeyFilePath),
		snap.WithJwtSecret(cfg.Api.JwtSecret),
		snap.WithJwtPublicKeyFile(cfg.Api.JwtPublicKeyFile),
		snap.WithJwtIssuer(cfg.Api.JwtIssuer),
		snap.WithSweep(cfg.Reconcile.SweepInterval, cfg.Reconcile.SweepPageSize),
		// Enable metrics with default prometheus registry
		snap.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	)
	app, err := snap.New(snap.NewConfig(opts...))
	if err != nil {
		return err
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = config.DefaultShutdownTimeout
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				err != http.ErrServerClosed {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
				os.Exit(1)
			}
		}()
	}
	shutdownMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		errChan <- app.Run(signalCtx)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := app.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errChan:
		if err != nil {
			logger.Error("snap error", "error", err)
		}
		signalCtxStop()
		shutdownMetrics()
		if stopErr := app.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
			if err == nil {
				err = stopErr
			}
		}
		return err
	}
}
