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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to the generated plugin environment variable names
const EnvPrefix = "SNAP_DATABASE"

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = 1
	PluginOptionTypeBool   PluginOptionType = 2
	PluginOptionTypeInt    PluginOptionType = 3
	PluginOptionTypeUint   PluginOptionType = 4
)

type PluginOption struct {
	Name         string
	Type         PluginOptionType
	Description  string
	DefaultValue any
	Dest         any
}

func (p PluginOption) flagName(pluginType PluginType, pluginName string) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(pluginType),
		pluginName,
		p.Name,
	)
}

// EnvVarName returns the environment variable consulted for an option,
// for example SNAP_DATABASE_METADATA_POSTGRES_HOST
func (p PluginOption) EnvVarName(pluginType PluginType, pluginName string) string {
	name := fmt.Sprintf(
		"%s_%s_%s_%s",
		EnvPrefix,
		PluginTypeName(pluginType),
		pluginName,
		p.Name,
	)
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// PopulateCmdlineOptions registers a flag for every option of every registered plugin
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			name := opt.flagName(entry.Type, entry.Name)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf("option %s: destination is not *string", name)
				}
				def, _ := opt.DefaultValue.(string)
				fs.StringVar(dest, name, def, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf("option %s: destination is not *bool", name)
				}
				def, _ := opt.DefaultValue.(bool)
				fs.BoolVar(dest, name, def, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf("option %s: destination is not *int", name)
				}
				def, _ := opt.DefaultValue.(int)
				fs.IntVar(dest, name, def, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf("option %s: destination is not *uint64", name)
				}
				def, _ := opt.DefaultValue.(uint64)
				fs.Uint64Var(dest, name, def, opt.Description)
			default:
				return fmt.Errorf("option %s: unknown option type %d", name, opt.Type)
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin option values found in the environment
func ProcessEnvVars() error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			envName := opt.EnvVarName(entry.Type, entry.Name)
			raw, ok := os.LookupEnv(envName)
			if !ok {
				continue
			}
			value, err := opt.parseString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", envName, err)
			}
			if err := opt.assign(value); err != nil {
				return fmt.Errorf("%s: %w", envName, err)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin option values from the config file. The map is
// keyed by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		typeConfig, ok := pluginConfig[PluginTypeName(entry.Type)]
		if !ok {
			continue
		}
		options, ok := typeConfig[entry.Name]
		if !ok {
			continue
		}
		for _, opt := range entry.Options {
			value, ok := options[opt.Name]
			if !ok {
				continue
			}
			// YAML decodes numbers as int and everything else as its own type
			if s, isString := value.(string); isString && opt.Type != PluginOptionTypeString {
				parsed, err := opt.parseString(s)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", entry.Name, opt.Name, err)
				}
				value = parsed
			}
			if err := opt.assign(value); err != nil {
				return fmt.Errorf("%s.%s: %w", entry.Name, opt.Name, err)
			}
		}
	}
	return nil
}

func (p PluginOption) parseString(raw string) (any, error) {
	switch p.Type {
	case PluginOptionTypeString:
		return raw, nil
	case PluginOptionTypeBool:
		return strconv.ParseBool(raw)
	case PluginOptionTypeInt:
		return strconv.Atoi(raw)
	case PluginOptionTypeUint:
		return strconv.ParseUint(raw, 10, 64)
	default:
		return nil, fmt.Errorf("unknown option type %d", p.Type)
	}
}
