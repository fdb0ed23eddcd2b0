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

package mysql

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
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// mysqlErrUnknownDatabase is returned by the server when the schema is missing
const mysqlErrUnknownDatabase = 1049

// MetadataStoreMysql stores claim links in MySQL
type MetadataStoreMysql struct {
	*claimstore.Store
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger

	host     string
	user     string
	password string
	database string
	tlsMode  string
	timeZone string
	dsn      string
	port     uint
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start.
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	db := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(db)
	}
	if db.host == "" {
		db.host = "localhost"
	}
	if db.port == 0 {
		db.port = 3306
	}
	if db.user == "" {
		db.user = "root"
	}
	if db.database == "" {
		db.database = "snap"
	}
	if db.timeZone == "" {
		db.timeZone = "UTC"
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// buildDSN returns the connection string and the database name it targets
func (d *MetadataStoreMysql) buildDSN() (string, string) {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return dsn, d.database
		}
		return dsn, cfg.DBName
	}
	cfg := mysql.NewConfig()
	cfg.User = d.user
	cfg.Passwd = d.password
	cfg.Net = "tcp"
	cfg.Addr = d.host + ":" + strconv.FormatUint(uint64(d.port), 10)
	cfg.DBName = d.database
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true
	cfg.Params = map[string]string{}
	if d.timeZone != "" {
		if loc, err := time.LoadLocation(d.timeZone); err == nil {
			cfg.Loc = loc
		}
	}
	if d.tlsMode != "" {
		cfg.Params["tls"] = d.tlsMode
	}
	return cfg.FormatDSN(), d.database
}

func (d *MetadataStoreMysql) open(dsn string) (*gorm.DB, error) {
	return gorm.Open(
		gormmysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	dsn, dbName := d.buildDSN()
	metadataDb, err := d.open(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != mysqlErrUnknownDatabase {
			return err
		}
		if createErr := d.createDatabase(dsn, dbName); createErr != nil {
			return errors.Join(err, createErr)
		}
		metadataDb, err = d.open(dsn)
		if err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", dbName,
	)
	d.db = metadataDb
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	if d.promRegistry != nil {
		if err := d.promRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, "mysql"),
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

// createDatabase connects without a schema and creates the target database
func (d *MetadataStoreMysql) createDatabase(dsn string, dbName string) error {
	if dbName == "" {
		return errors.New("no database name to create")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	cfg.DBName = ""
	adminDb, err := d.open(cfg.FormatDSN())
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	stmt := fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS `%s`",
		strings.ReplaceAll(dbName, "`", ""),
	)
	return adminDb.Exec(stmt).Error
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// SetLogger implements plugin.Instrumented
func (d *MetadataStoreMysql) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Instrumented
func (d *MetadataStoreMysql) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Close closes the connection pool
func (d *MetadataStoreMysql) Close() error {
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
func (d *MetadataStoreMysql) DB() *gorm.DB {
	return d.db
}

// Transaction creates a gorm transaction
func (d *MetadataStoreMysql) Transaction() *gorm.DB {
	return d.DB().Begin()
}
