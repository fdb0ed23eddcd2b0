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
	"sync"

	"github.com/blinklabs-io/snap/database/plugin"
)

var (
	cmdlineOptions struct {
		host     string
		user     string
		password string
		database string
		tlsMode  string
		timeZone string
		dsn      string
		port     uint64
	}
	cmdlineOptionsMutex sync.RWMutex
)

func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.host = "localhost"
	cmdlineOptions.port = 3306
	cmdlineOptions.user = "root"
	cmdlineOptions.password = ""
	cmdlineOptions.database = "snap"
	cmdlineOptions.tlsMode = ""
	cmdlineOptions.timeZone = "UTC"
	cmdlineOptions.dsn = ""
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "mysql",
			Description:        "MySQL relational database",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "host",
					Type:         plugin.PluginOptionTypeString,
					Description:  "MySQL host",
					DefaultValue: "localhost",
					Dest:         &(cmdlineOptions.host),
				},
				{
					Name:         "port",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "MySQL port",
					DefaultValue: uint64(3306),
					Dest:         &(cmdlineOptions.port),
				},
				{
					Name:         "user",
					Type:         plugin.PluginOptionTypeString,
					Description:  "MySQL user",
					DefaultValue: "root",
					Dest:         &(cmdlineOptions.user),
				},
				{
					Name:         "password",
					Type:         plugin.PluginOptionTypeString,
					Description:  "MySQL password",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.password),
				},
				{
					Name:         "database",
					Type:         plugin.PluginOptionTypeString,
					Description:  "MySQL database name, created if missing",
					DefaultValue: "snap",
					Dest:         &(cmdlineOptions.database),
				},
				{
					Name:         "tls",
					Type:         plugin.PluginOptionTypeString,
					Description:  "MySQL driver tls parameter",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.tlsMode),
				},
				{
					Name:         "timezone",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Location for parsed timestamps",
					DefaultValue: "UTC",
					Dest:         &(cmdlineOptions.timeZone),
				},
				{
					Name:         "dsn",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Full MySQL DSN (overrides other options when set)",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.dsn),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []MysqlOptionFunc{
		WithHost(cmdlineOptions.host),
		// #nosec G115
		WithPort(uint(cmdlineOptions.port)),
		WithUser(cmdlineOptions.user),
		WithPassword(cmdlineOptions.password),
		WithDatabase(cmdlineOptions.database),
		WithTLSMode(cmdlineOptions.tlsMode),
		WithTimeZone(cmdlineOptions.timeZone),
		WithDSN(cmdlineOptions.dsn),
	}
	cmdlineOptionsMutex.RUnlock()

	p, err := NewWithOptions(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
