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

package pinata

import (
	"sync"

	"github.com/blinklabs-io/snap/database/plugin"
)

var (
	cmdlineOptions struct {
		jwt        string
		apiURL     string
		gatewayURL string
	}
	cmdlineOptionsMutex sync.RWMutex
)

// initCmdlineOptions sets default values for cmdlineOptions
func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.apiURL = DefaultAPIURL
	cmdlineOptions.gatewayURL = DefaultGatewayURL
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "pinata",
			Description:        "IPFS pinning through Pinata",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "jwt",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Pinata API JWT",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.jwt),
				},
				{
					Name:         "api-url",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Pinata API base URL",
					DefaultValue: DefaultAPIURL,
					Dest:         &(cmdlineOptions.apiURL),
				},
				{
					Name:         "gateway-url",
					Type:         plugin.PluginOptionTypeString,
					Description:  "IPFS gateway base URL",
					DefaultValue: DefaultGatewayURL,
					Dest:         &(cmdlineOptions.gatewayURL),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts := []BlobStorePinataOptionFunc{
		WithJWT(cmdlineOptions.jwt),
		WithAPIURL(cmdlineOptions.apiURL),
		WithGatewayURL(cmdlineOptions.gatewayURL),
	}
	cmdlineOptionsMutex.RUnlock()
	p, err := NewWithOptions(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
