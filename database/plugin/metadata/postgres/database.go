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

package postgres

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/snap/database/models"
	"github.com/blinklabs-io/snap/database/plugin/metadata/internal/claimstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// MetadataStorePostgres stores claim links in Postgres. Hosted Postgres
// services such as Supabase work through the dsn option.
type MetadataStorePostgres struct {
	*claimstore.Store
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger

	host              string
	user              string
	password          string
	database          string
	sslMode           string
	timeZone          string
	dsn               string
	port              uint
	maxOpenConns      int
	disablePrepareStm bool
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start.
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(db)
	}
	if db.host == "" {
		db.host = "localhost"
	}
	if db.port == 0 {
		db.port = 5432
	}
	if db.user == "" {
		db.user = "postgres"
	}
	if db.database == "" {
		db.database = "postgres"
	}
	if db.sslMode == "" {
		db.sslMode = "disable"
	}
	if db.timeZone == "" {
		db.timeZone = "UTC"
	}
	if db.maxOpenConns <= 0 {
		db.maxOpenConns = 20
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// buildDSN returns the explicit DSN when set, otherwise one assembled from the
// individual connection options
func (d *MetadataStorePostgres) buildDSN() string {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.host,
		"user=" + d.user,
		"password=" + d.password,
		"dbname=" + d.database,
		"port=" + strconv.FormatUint(uint64(d.port), 10),
		"sslmode=" + d.sslMode,
	}
	if d.timeZone != "" {
		parts = append(parts, "TimeZone="+d.timeZone)
	}
	return strings.Join(parts, " ")
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	metadataDb, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN: d.buildDSN(),
			// Transaction-mode poolers can't hold prepared statements
			PreferSimpleProtocol: d.disablePrepareStm,
		}),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            !d.disablePrepareStm,
		},
	)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", d.database,
	)
	d.db = metadataDb
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(min(10, d.maxOpenConns))
	sqlDB.SetMaxOpenConns(d.maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.promRegistry != nil {
		if err := d.promRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, "postgres"),
		); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
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

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// SetLogger implements plugin.Instrumented
func (d *MetadataStorePostgres) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Instrumented
func (d *MetadataStorePostgres) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Close closes the connection pool
func (d *MetadataStorePostgres) Close() error {
	// Start may have failed or never been called
	if d.db == nil {
		return nil
	}
	db, err := d.DB().DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// DB returns the database handle
func (d *MetadataStorePostgres) DB() *gorm.DB {
	return d.db
}

// Transaction creates a gorm transaction
func (d *MetadataStorePostgres) Transaction() *gorm.DB {
	return d.DB().Begin()
}
