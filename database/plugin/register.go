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

package plugin

import (
	"sort"
	"sync"
)

type PluginType int

const (
	PluginTypeMetadata PluginType = 1
	PluginTypeBlob     PluginType = 2
)

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeMetadata:
		return "metadata"
	case PluginTypeBlob:
		return "blob"
	default:
		return ""
	}
}

type PluginEntry struct {
	Type               PluginType
	Name               string
	Description        string
	NewFromOptionsFunc func() Plugin
	Options            []PluginOption
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// Register adds a plugin to the registry. Registering the same type/name
// twice replaces the earlier entry.
func Register(pluginEntry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for i := range pluginEntries {
		if pluginEntries[i].Type == pluginEntry.Type &&
			pluginEntries[i].Name == pluginEntry.Name {
			pluginEntries[i] = pluginEntry
			return
		}
	}
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered plugins of the given type sorted by name
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := []PluginEntry{}
	for _, p := range pluginEntries {
		if p.Type == pluginType {
			ret = append(ret, p)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Name < ret[j].Name
	})
	return ret
}

// GetPlugin returns a new instance of the named plugin, or nil if it isn't registered
func GetPlugin(pluginType PluginType, name string) Plugin {
	entry := findEntry(pluginType, name)
	if entry == nil || entry.NewFromOptionsFunc == nil {
		return nil
	}
	return entry.NewFromOptionsFunc()
}

func findEntry(pluginType PluginType, name string) *PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for i := range pluginEntries {
		if pluginEntries[i].Type == pluginType &&
			pluginEntries[i].Name == name {
			return &pluginEntries[i]
		}
	}
	return nil
}
