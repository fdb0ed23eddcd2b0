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

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/metadata/internal/claimstore"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// MetadataStoreSqlite is a SQLite-based implementation of the metadata store
type MetadataStoreSqlite struct {
	*claimstore.Store
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	timerVacuum  *time.Timer
	timerMutex   sync.Mutex
	dataDir      string
	closed       bool
	vacuumWG     sync.WaitGroup
}

// New creates a SQLite metadata store. Uses an in-memory database if dataDir is empty.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	db := &MetadataStoreSqlite{
		dataDir:      dataDir,
		logger:       logger,
		promRegistry: promRegistry,
	}
	if err := db.Start(); err != nil {
		return nil, err
	}
	return db, nil
}

// NewWithOptions creates a SQLite metadata store from option funcs. The
// database is not opened until Start is called.
func NewWithOptions(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	db := &MetadataStoreSqlite{}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Start opens the database and applies migrations
func (d *MetadataStoreSqlite) Start() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var dsn string
	if d.dataDir == "" {
		// Each in-memory store gets its own name so that stores opened in the
		// same process don't see each other's rows
		dsn = fmt.Sprintf(
			"file:snap-%s?mode=memory&cache=shared",
			uuid.NewString(),
		)
	} else {
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		metadataDbPath := filepath.Join(d.dataDir, "metadata.sqlite")
		// WAL journal mode, wait on locks held by concurrent writers
		metadataConnOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dsn = fmt.Sprintf("file:%s?%s", metadataDbPath, metadataConnOpts)
	}
	metadataDb, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return err
	}
	d.db = metadataDb
	if d.dataDir == "" {
		// Shared-cache memory databases use table locks, so keep writers on
		// a single connection
		sqlDB, err := d.db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := d.init(); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := d.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	d.Store = claimstore.New(d.db)
	return nil
}

func (d *MetadataStoreSqlite) init() error {
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.promRegistry != nil {
		sqlDB, err := d.db.DB()
		if err != nil {
			return err
		}
		if err := d.promRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, "sqlite"),
		); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	d.scheduleDailyVacuum()
	return nil
}

// Stop closes the database
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()

	if result := d.DB().Exec("VACUUM"); result.Error != nil {
		return result.Error
	}
	return nil
}

// scheduleDailyVacuum schedules a daily vacuum operation
func (d *MetadataStoreSqlite) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	f := func() {
		d.logger.Debug(
			"running vacuum on sqlite metadata database",
			"component", "database",
		)
		defer d.scheduleDailyVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"component", "database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(24*time.Hour, f)
}

// SetLogger implements plugin.Instrumented
func (d *MetadataStoreSqlite) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Instrumented
func (d *MetadataStoreSqlite) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Close shuts down the database connection and stops background processes
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()

	d.vacuumWG.Wait()

	if d.db == nil {
		return nil
	}
	db, err := d.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// DB returns the underlying GORM database handle
func (d *MetadataStoreSqlite) DB() *gorm.DB {
	return d.db
}

// Transaction creates a new database transaction
func (d *MetadataStoreSqlite) Transaction() *gorm.DB {
	return d.DB().Begin()
}
