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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/series"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	wallet           *chain.Wallet
	chainConfig      chain.Config
	chainBackend     chain.Backend
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	apiHost          string
	apiSocketPath    string
	tlsCertFilePath  string
	tlsKeyFilePath   string
	jwtSecret        string
	jwtPublicKeyFile string
	jwtIssuer        string
	seriesLock       string
	redisURL         string
	kafkaTopic       string
	kafkaTopicPrefix string
	kafkaBrokers     []string
	uploadTypes      []string
	redisLockTTL     time.Duration
	sweepInterval    time.Duration
	shutdownTimeout  time.Duration
	apiPort          uint
	apiMaxInFlight   int
	sweepPageSize    int
	maxCodesPerBatch int
	uploadMaxSize    int
	apiEnabled       bool
	apiReuseAddress  bool
	tracing          bool
	tracingStdout    bool
}

func (a *App) configValidate() error {
	switch a.config.seriesLock {
	case "", series.LockLocal, series.LockNone:
	case series.LockRedis:
		if a.config.redisURL == "" {
			return errors.New("redis series lock requires a redis URL")
		}
	default:
		return fmt.Errorf("unknown series lock mode: %s", a.config.seriesLock)
	}
	if a.config.chainBackend == nil && a.config.chainConfig.RPCURL == "" {
		return errors.New("no chain RPC URL configured")
	}
	if a.config.sweepInterval < 0 {
		return fmt.Errorf("invalid sweep interval: %s", a.config.sweepInterval)
	}
	if a.config.jwtSecret != "" && a.config.jwtPublicKeyFile != "" {
		return errors.New("JWT secret and public key file are mutually exclusive")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the App config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new snap config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		chainConfig: chain.DefaultConfig(),
		seriesLock:  series.LockLocal,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. By default, metrics are not collected
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithChainConfig specifies the node endpoint and contract addresses
func WithChainConfig(cfg chain.Config) ConfigOptionFunc {
	return func(c *Config) {
		c.chainConfig = cfg
	}
}

// WithChainBackend uses an existing backend instead of dialing the RPC URL.
// This is mostly useful for tests with a simulated chain.
func WithChainBackend(backend chain.Backend) ConfigOptionFunc {
	return func(c *Config) {
		c.chainBackend = backend
	}
}

// WithWallet specifies the signing wallet. Without one, and without a key
// file in the chain config, write operations are unavailable.
func WithWallet(wallet *chain.Wallet) ConfigOptionFunc {
	return func(c *Config) {
		c.wallet = wallet
	}
}

// WithApi enables the HTTP API on the given host and port
func WithApi(host string, port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiEnabled = true
		c.apiHost = host
		c.apiPort = port
	}
}

// WithApiMaxInFlightPerIP caps concurrent API requests per client address
func WithApiMaxInFlightPerIP(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.apiMaxInFlight = limit
	}
}

// WithApiSocketPath serves the API on a UNIX socket, or a named pipe on
// Windows, instead of TCP
func WithApiSocketPath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiEnabled = true
		c.apiSocketPath = path
	}
}

// WithApiReuseAddress sets SO_REUSEADDR and SO_REUSEPORT on the API listener
func WithApiReuseAddress(reuse bool) ConfigOptionFunc {
	return func(c *Config) {
		c.apiReuseAddress = reuse
	}
}

// WithApiTlsCertFilePath specifies the path to the TLS certificate for the API listener
func WithApiTlsCertFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsCertFilePath = path
	}
}

// WithApiTlsKeyFilePath specifies the path to the TLS key for the API listener
func WithApiTlsKeyFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsKeyFilePath = path
	}
}

// WithJwtSecret requires HS256 bearer tokens signed with secret on write routes
func WithJwtSecret(secret string) ConfigOptionFunc {
	return func(c *Config) {
		c.jwtSecret = secret
	}
}

// WithJwtPublicKeyFile requires RS256 bearer tokens verified by the PEM
// public key in path on write routes
func WithJwtPublicKeyFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.jwtPublicKeyFile = path
	}
}

// WithJwtIssuer requires bearer tokens to carry the given issuer
func WithJwtIssuer(issuer string) ConfigOptionFunc {
	return func(c *Config) {
		c.jwtIssuer = issuer
	}
}

// WithSeriesLock selects how code generation is serialized per series:
// local, redis or none
func WithSeriesLock(mode string, redisURL string, ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.seriesLock = mode
		c.redisURL = redisURL
		c.redisLockTTL = ttl
	}
}

// WithMaxCodesPerBatch limits how many codes one generation call may create
func WithMaxCodesPerBatch(n int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxCodesPerBatch = n
	}
}

// WithSweep enables the background reconciliation sweep
func WithSweep(interval time.Duration, pageSize int) ConfigOptionFunc {
	return func(c *Config) {
		c.sweepInterval = interval
		c.sweepPageSize = pageSize
	}
}

// WithKafka forwards all bus events to Kafka. With an empty topic each event
// type goes to prefix plus the type name.
func WithKafka(brokers []string, topic string, topicPrefix string) ConfigOptionFunc {
	return func(c *Config) {
		c.kafkaBrokers = brokers
		c.kafkaTopic = topic
		c.kafkaTopicPrefix = topicPrefix
	}
}

// WithUploadLimits sets the largest accepted upload and the accepted MIME types
func WithUploadLimits(maxSize int, contentTypes []string) ConfigOptionFunc {
	return func(c *Config) {
		c.uploadMaxSize = maxSize
		c.uploadTypes = contentTypes
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
