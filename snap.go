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

package snap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/snap/api"
	"github.com/blinklabs-io/snap/brand"
	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database"
	"github.com/blinklabs-io/snap/event"
	"github.com/blinklabs-io/snap/keystore"
	"github.com/blinklabs-io/snap/reconcile"
	"github.com/blinklabs-io/snap/series"
	"github.com/blinklabs-io/snap/upload"
)

// App owns the claim store, the contract gateways and the services built on
// top of them
type App struct {
	db            *database.Database
	chainClient   *chain.Client
	wallet        *chain.Wallet
	eventBus      *event.EventBus
	reconciler    *reconcile.Reconciler
	series        *series.Service
	brands        *brand.Service
	uploader      *upload.Gateway
	apiServer     *api.Server
	sweeper       *reconcile.Sweeper
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	mu            sync.Mutex
	opened        bool
	shutdownOnce  sync.Once
}

func New(cfg Config) (*App, error) {
	a := &App{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		wallet:   cfg.wallet,
		done:     make(chan struct{}),
	}
	if err := a.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return a, nil
}

// Open connects the claim store and the chain and builds the services. It
// starts nothing in the background, so one-shot commands can use the services
// directly.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}
	logger := a.config.logger
	// Configure tracing
	if a.config.tracing {
		if err := a.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		Logger:         logger,
		PromRegistry:   a.config.promRegistry,
		DataDir:        a.config.dataDir,
		MetadataPlugin: a.config.metadataPlugin,
		BlobPlugin:     a.config.blobPlugin,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	// Connect to the chain
	chainOpts := []chain.ContractOptionFunc{
		chain.WithLogger(logger),
		chain.WithPromRegistry(a.config.promRegistry),
	}
	if a.config.chainBackend != nil {
		a.chainClient, err = chain.NewClient(
			a.config.chainBackend,
			a.config.chainConfig,
			chainOpts...,
		)
	} else {
		a.chainClient, err = chain.Dial(ctx, a.config.chainConfig, chainOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to chain: %w", err)
	}
	// Load wallet
	if a.wallet == nil && a.config.chainConfig.KeyFile != "" {
		ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
			KeyFile: a.config.chainConfig.KeyFile,
			Logger:  logger,
		})
		if err := ks.Load(); err != nil {
			return fmt.Errorf("failed to load wallet: %w", err)
		}
		wallet, err := ks.Wallet()
		if err != nil {
			return fmt.Errorf("failed to load wallet: %w", err)
		}
		a.wallet = wallet
		logger.Info(
			"loaded wallet",
			"component", "snap",
			"address", wallet.Address().Hex(),
		)
	}
	// Forward events to Kafka
	if len(a.config.kafkaBrokers) > 0 {
		sink, err := event.NewKafkaSink(event.KafkaSinkConfig{
			Logger:      logger,
			Brokers:     a.config.kafkaBrokers,
			Topic:       a.config.kafkaTopic,
			TopicPrefix: a.config.kafkaTopicPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		a.eventBus.RegisterSubscriber(event.AllEvents, sink)
	}
	// Object uploads
	uploadOpts := []upload.GatewayOptionFunc{upload.WithLogger(logger)}
	if a.config.uploadMaxSize > 0 {
		uploadOpts = append(uploadOpts, upload.WithMaxSize(a.config.uploadMaxSize))
	}
	if len(a.config.uploadTypes) > 0 {
		uploadOpts = append(
			uploadOpts,
			upload.WithContentTypes(a.config.uploadTypes...),
		)
	}
	a.uploader = upload.New(a.db.Blob(), uploadOpts...)
	// Claim reconciler
	a.reconciler, err = reconcile.New(
		reconcile.WithChain(a.chainClient.Series),
		reconcile.WithDatabase(a.db),
		reconcile.WithLogger(logger),
		reconcile.WithEventBus(a.eventBus),
		reconcile.WithPromRegistry(a.config.promRegistry),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}
	// Series code generator
	locker, err := a.seriesLocker()
	if err != nil {
		return err
	}
	seriesOpts := []series.ServiceOptionFunc{
		series.WithChain(a.chainClient.Series),
		series.WithDatabase(a.db),
		series.WithUploader(a.uploader),
		series.WithLocker(locker),
		series.WithLogger(logger),
		series.WithEventBus(a.eventBus),
		series.WithPromRegistry(a.config.promRegistry),
	}
	if a.config.maxCodesPerBatch > 0 {
		seriesOpts = append(
			seriesOpts,
			series.WithMaxCodesPerBatch(a.config.maxCodesPerBatch),
		)
	}
	a.series = series.New(seriesOpts...)
	// Brand registry
	a.brands, err = brand.New(
		brand.WithRegistry(a.chainClient.Brands),
		brand.WithUploader(a.uploader),
		brand.WithLogger(logger),
		brand.WithEventBus(a.eventBus),
	)
	if err != nil {
		return fmt.Errorf("failed to create brand service: %w", err)
	}
	a.opened = true
	return nil
}

func (a *App) seriesLocker() (series.Locker, error) {
	switch a.config.seriesLock {
	case series.LockNone:
		a.config.logger.Warn(
			"series locking disabled, concurrent code generation can reuse serials",
			"component", "snap",
		)
		return series.NoopLocker{}, nil
	case series.LockRedis:
		locker, err := series.NewRedisLocker(a.config.redisURL, a.config.redisLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis lock: %w", err)
		}
		return locker, nil
	default:
		return series.NewLocalLocker(), nil
	}
}

// Start launches the API server and the periodic sweep. Open is called first
// if needed.
func (a *App) Start(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.config.apiEnabled && a.apiServer == nil {
		auth, err := api.NewAuthenticatorFromConfig(
			a.config.jwtSecret,
			a.config.jwtPublicKeyFile,
			a.config.jwtIssuer,
		)
		if err != nil {
			return fmt.Errorf("failed to configure API auth: %w", err)
		}
		a.apiServer = api.New(api.Config{
			Logger:           a.config.logger,
			Claims:           a.reconciler,
			Series:           a.series,
			Brands:           a.brands,
			Objects:          a.db,
			Wallet:           a.wallet,
			Auth:             auth,
			Host:             a.config.apiHost,
			Port:             a.config.apiPort,
			SocketPath:       a.config.apiSocketPath,
			ReuseAddress:     a.config.apiReuseAddress,
			TlsCertFilePath:  a.config.tlsCertFilePath,
			TlsKeyFilePath:   a.config.tlsKeyFilePath,
			MaxInFlightPerIP: a.config.apiMaxInFlight,
		})
		if err := a.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}
	if a.config.sweepInterval > 0 && a.sweeper == nil {
		a.sweeper = reconcile.NewSweeper(
			a.reconciler,
			a.config.sweepInterval,
			a.config.sweepPageSize,
		)
		if err := a.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}
	return nil
}

// Run starts the app and blocks until Stop is called or ctx is done
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	select {
	case <-a.done:
	case <-ctx.Done():
	}
	return nil
}

func (a *App) Stop() error {
	var err error
	a.shutdownOnce.Do(func() {
		err = a.shutdown()
	})
	return err
}

func (a *App) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if a.config.shutdownTimeout > 0 {
		shutdownTimeout = a.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.mu.Lock()
	apiServer, sweeper := a.apiServer, a.sweeper
	a.mu.Unlock()

	var err error
	logger := a.config.logger
	logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	logger.Debug("shutdown phase 1: stopping new work")
	if apiServer != nil {
		if stopErr := apiServer.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	// Phase 2: Flush events
	logger.Debug("shutdown phase 2: flushing events")
	if a.eventBus != nil {
		a.eventBus.Stop()
	}

	// Phase 3: Close connections and database
	logger.Debug("shutdown phase 3: closing connections")
	if a.chainClient != nil {
		a.chainClient.Close()
	}
	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	logger.Debug("shutdown phase 4: cleanup resources")
	for _, fn := range a.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	a.shutdownFuncs = nil

	logger.Debug("graceful shutdown complete")
	close(a.done)
	return err
}

func (a *App) Reconciler() *reconcile.Reconciler {
	return a.reconciler
}

func (a *App) Series() *series.Service {
	return a.series
}

func (a *App) Brands() *brand.Service {
	return a.brands
}

func (a *App) Database() *database.Database {
	return a.db
}

func (a *App) Uploader() *upload.Gateway {
	return a.uploader
}

func (a *App) EventBus() *event.EventBus {
	return a.eventBus
}

func (a *App) Chain() *chain.Client {
	return a.chainClient
}

// Wallet returns the signing wallet, or nil when the app is read-only
func (a *App) Wallet() *chain.Wallet {
	return a.wallet
}

// ApiAddr returns the address the API server listens on, or nil
func (a *App) ApiAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.Addr()
}
