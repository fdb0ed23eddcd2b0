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

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/snap/database/plugin"
	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/blinklabs-io/snap/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"

	// Register database plugins
	_ "github.com/blinklabs-io/snap/database/plugin/blob/aws"
	_ "github.com/blinklabs-io/snap/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/snap/database/plugin/blob/gcs"
	_ "github.com/blinklabs-io/snap/database/plugin/blob/pinata"
	_ "github.com/blinklabs-io/snap/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/snap/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/snap/database/plugin/metadata/sqlite"
)

const (
	DefaultMetadataPlugin = "sqlite"
	DefaultBlobPlugin     = "badger"
)

// Config holds the database settings
type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	DataDir        string
	MetadataPlugin string
	BlobPlugin     string
}

// Database pairs the relational claim-link mirror with the object store used
// for series artwork and brand logos
type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	dataDir  string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new metadata transaction and returns a handle to it
func (d *Database) Transaction() *Txn {
	return NewTxn(d)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
}

// New creates a new database instance from the configured plugins. A
// non-empty DataDir overrides the data-dir option of the selected plugins.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	metadataPlugin := cfg.MetadataPlugin
	if metadataPlugin == "" {
		metadataPlugin = DefaultMetadataPlugin
	}
	blobPlugin := cfg.BlobPlugin
	if blobPlugin == "" {
		blobPlugin = DefaultBlobPlugin
	}
	if cfg.DataDir != "" {
		if err := plugin.SetPluginOption(
			plugin.PluginTypeMetadata,
			metadataPlugin,
			"data-dir",
			cfg.DataDir,
		); err != nil {
			return nil, err
		}
		if err := plugin.SetPluginOption(
			plugin.PluginTypeBlob,
			blobPlugin,
			"data-dir",
			cfg.DataDir,
		); err != nil {
			return nil, err
		}
	}
	metadataDb, err := metadata.New(
		metadataPlugin,
		cfg.Logger,
		cfg.PromRegistry,
	)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(blobPlugin, cfg.Logger, cfg.PromRegistry)
	if err != nil {
		if closeErr := metadataDb.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	db := &Database{
		logger:   cfg.Logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}
	db.init()
	db.logger.Debug(
		fmt.Sprintf(
			"opened database with metadata plugin %s and blob plugin %s",
			metadataPlugin,
			blobPlugin,
		),
		"component", "database",
	)
	return db, nil
}

// NewFromStores wraps already started stores. Either store may be nil for
// callers that only need one of them.
func NewFromStores(
	logger *slog.Logger,
	metadataStore metadata.MetadataStore,
	blobStore blob.BlobStore,
) *Database {
	db := &Database{
		logger:   logger,
		blob:     blobStore,
		metadata: metadataStore,
	}
	db.init()
	return db
}
