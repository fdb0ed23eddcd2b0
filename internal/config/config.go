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

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/snap/chain"
	"github.com/blinklabs-io/snap/database/plugin"
	"github.com/blinklabs-io/snap/series"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "snap.config"

const (
	DefaultBlobPlugin       = "badger"
	DefaultMetadataPlugin   = "sqlite"
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMetricsPort      = 12798
	DefaultMaxInFlightPerIP = 16
	DefaultApiPort          = 8080
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type ApiConfig struct {
	Host             string `yaml:"host"`
	SocketPath       string `yaml:"socketPath"       split_words:"true"`
	TlsCertFilePath  string `yaml:"tlsCertFilePath"  envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath   string `yaml:"tlsKeyFilePath"   envconfig:"TLS_KEY_FILE_PATH"`
	JwtSecret        string `yaml:"jwtSecret"        split_words:"true"`
	JwtPublicKeyFile string `yaml:"jwtPublicKeyFile" split_words:"true"`
	JwtIssuer        string `yaml:"jwtIssuer"        split_words:"true"`
	Port             uint   `yaml:"port"`
	MaxInFlightPerIP int    `yaml:"maxInFlightPerIp" envconfig:"MAX_IN_FLIGHT_PER_IP"`
	ReuseAddress     bool   `yaml:"reuseAddress"     split_words:"true"`
}

type SeriesConfig struct {
	// Lock is one of local, redis or none
	Lock             string        `yaml:"lock"`
	RedisURL         string        `yaml:"redisUrl"         envconfig:"REDIS_URL"`
	LockTTL          time.Duration `yaml:"lockTtl"          envconfig:"LOCK_TTL"`
	MaxCodesPerBatch int           `yaml:"maxCodesPerBatch" split_words:"true"`
}

type ReconcileConfig struct {
	// SweepInterval enables the background sweep when positive
	SweepInterval time.Duration `yaml:"sweepInterval" split_words:"true"`
	SweepPageSize int           `yaml:"sweepPageSize" split_words:"true"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	TopicPrefix string   `yaml:"topicPrefix" split_words:"true"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	Stdout  bool `yaml:"stdout"`
}

type UploadConfig struct {
	MaxSize      int      `yaml:"maxSize"      split_words:"true"`
	ContentTypes []string `yaml:"contentTypes" split_words:"true"`
}

type tempConfig struct {
	Config   *yaml.Node                `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	Chain           chain.Config    `yaml:"chain"`
	Api             ApiConfig       `yaml:"api"`
	Series          SeriesConfig    `yaml:"series"`
	Reconcile       ReconcileConfig `yaml:"reconcile"`
	Kafka           KafkaConfig     `yaml:"kafka"`
	Tracing         TracingConfig   `yaml:"tracing"`
	Upload          UploadConfig    `yaml:"upload"`
	MetadataPlugin  string          `yaml:"metadataPlugin"  envconfig:"SNAP_DATABASE_METADATA_PLUGIN"`
	BlobPlugin      string          `yaml:"blobPlugin"      envconfig:"SNAP_DATABASE_BLOB_PLUGIN"`
	DatabasePath    string          `yaml:"databasePath"    split_words:"true"`
	BindAddr        string          `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout" split_words:"true"`
	MetricsPort     uint            `yaml:"metricsPort"     split_words:"true"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() *Config {
	return &Config{
		Chain: chain.DefaultConfig(),
		Api: ApiConfig{
			Host:             "0.0.0.0",
			Port:             DefaultApiPort,
			MaxInFlightPerIP: DefaultMaxInFlightPerIP,
		},
		Series: SeriesConfig{
			Lock:             series.LockLocal,
			LockTTL:          series.DefaultRedisLockTTL,
			MaxCodesPerBatch: series.DefaultMaxCodesPerBatch,
		},
		Reconcile: ReconcileConfig{
			SweepPageSize: 100,
		},
		MetadataPlugin:  DefaultMetadataPlugin,
		BlobPlugin:      DefaultBlobPlugin,
		DatabasePath:    ".snap",
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsPort:     DefaultMetricsPort,
	}
}

var globalConfig = DefaultConfig()

// LoadConfig reads the YAML config file, then applies environment
// overrides. With no file given it looks in ~/.snap/snap.yaml and
// /etc/snap/snap.yaml.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process("snap", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".snap", "snap.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/snap/snap.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

func loadConfigFile(configFile string, cfg *Config) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Decode the config section over the defaults so that unset keys
		// keep their default values
		if err := tempCfg.Config.Decode(cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, sections := splitPluginSection("blob", tempCfg.Database.Blob)
			if name != "" {
				cfg.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", sections)
		}
		if tempCfg.Database.Metadata != nil {
			name, sections := splitPluginSection("metadata", tempCfg.Database.Metadata)
			if name != "" {
				cfg.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", sections)
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// splitPluginSection pulls the selected plugin name out of a database
// section and returns the remaining per-plugin option maps
func splitPluginSection(
	kind string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var name string
	if v, ok := section["plugin"].(string); ok {
		name = v
	}
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any, len(val))
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				kind,
				k,
				v,
			)
		}
	}
	return name, ret
}

func mergePluginConfig(
	dest map[string]map[string]map[string]any,
	kind string,
	sections map[string]map[string]any,
) {
	if dest[kind] == nil {
		dest[kind] = sections
		return
	}
	maps.Copy(dest[kind], sections)
}

// Validate checks settings that can't be caught by the decoders
func (c *Config) Validate() error {
	switch c.Series.Lock {
	case series.LockLocal, series.LockNone:
	case series.LockRedis:
		if c.Series.RedisURL == "" {
			return errors.New("series.lock is redis but series.redisUrl is not set")
		}
	default:
		return fmt.Errorf(
			"invalid series.lock: %q (must be 'local', 'redis', or 'none')",
			c.Series.Lock,
		)
	}
	if c.Series.MaxCodesPerBatch < 0 {
		return fmt.Errorf("invalid series.maxCodesPerBatch: %d", c.Series.MaxCodesPerBatch)
	}
	if c.Reconcile.SweepInterval < 0 {
		return fmt.Errorf("invalid reconcile.sweepInterval: %s", c.Reconcile.SweepInterval)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Api.JwtSecret != "" && c.Api.JwtPublicKeyFile != "" {
		return errors.New("api.jwtSecret and api.jwtPublicKeyFile are mutually exclusive")
	}
	return nil
}
