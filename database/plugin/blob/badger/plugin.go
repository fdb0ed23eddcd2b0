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

package badger

import (
	"sync"

	"github.com/blinklabs-io/snap/database/plugin"
)

// Default sizes for BadgerDB (in bytes). Artwork and logos are small, so the
// caches are far below what a general purpose store would use.
const (
	DefaultBlockCacheSize   = 67108864 // 64MB
	DefaultIndexCacheSize   = 33554432 // 32MB
	DefaultValueLogFileSize = 268435456
	DefaultMemTableSize     = 67108864
	DefaultValueThreshold   = 1024
)

var (
	cmdlineOptions struct {
		dataDir        string
		publicURL      string
		blockCacheSize uint64
		indexCacheSize uint64
		gcEnabled      bool
	}
	cmdlineOptionsMutex sync.RWMutex
)

// initCmdlineOptions sets default values for cmdlineOptions
func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.blockCacheSize = DefaultBlockCacheSize
	cmdlineOptions.indexCacheSize = DefaultIndexCacheSize
	cmdlineOptions.gcEnabled = true
	cmdlineOptions.dataDir = ".snap"
	cmdlineOptions.publicURL = DefaultPublicURL
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "badger",
			Description:        "BadgerDB local object store",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for badger storage, empty for in-memory",
					DefaultValue: ".snap",
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "public-url",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Base URL that stored objects are served from",
					DefaultValue: DefaultPublicURL,
					Dest:         &(cmdlineOptions.publicURL),
				},
				{
					Name:         "block-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger block cache size",
					DefaultValue: uint64(DefaultBlockCacheSize),
					Dest:         &(cmdlineOptions.blockCacheSize),
				},
				{
					Name:         "index-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger index cache size",
					DefaultValue: uint64(DefaultIndexCacheSize),
					Dest:         &(cmdlineOptions.indexCacheSize),
				},
				{
					Name:         "gc",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Enable garbage collection",
					DefaultValue: true,
					Dest:         &(cmdlineOptions.gcEnabled),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStoreBadgerOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
		WithPublicURL(cmdlineOptions.publicURL),
		WithBlockCacheSize(cmdlineOptions.blockCacheSize),
		WithIndexCacheSize(cmdlineOptions.indexCacheSize),
		WithGc(cmdlineOptions.gcEnabled),
	}
	cmdlineOptionsMutex.RUnlock()
	p, err := NewWithOptions(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
