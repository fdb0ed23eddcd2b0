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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Plugin interface {
	Start() error
	Stop() error
}

// Instrumented is implemented by plugins that accept a logger and a metrics
// registry before they are started
type Instrumented interface {
	SetLogger(*slog.Logger)
	SetPromRegistry(prometheus.Registerer)
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// StartPlugin gets a plugin from the registry and starts it
func StartPlugin(pluginType PluginType, pluginName string) (Plugin, error) {
	return StartPluginWith(pluginType, pluginName, nil, nil)
}

// StartPluginWith gets a plugin from the registry, hands it the logger and
// metrics registry when it is Instrumented, and starts it
func StartPluginWith(
	pluginType PluginType,
	pluginName string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if ip, ok := p.(Instrumented); ok {
		if logger != nil {
			ip.SetLogger(logger)
		}
		if promRegistry != nil {
			ip.SetPromRegistry(promRegistry)
		}
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption sets the value of a named option for a plugin entry. This
// is used by callers that need to override plugin defaults programmatically,
// such as tests pointing the sqlite plugin at a temp dir. Unknown options are
// ignored. It must be called before the plugin is instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	entry := findEntry(pluginType, pluginName)
	if entry == nil {
		return fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	for _, opt := range entry.Options {
		if opt.Name != optionName {
			continue
		}
		if opt.Dest == nil {
			return fmt.Errorf("nil destination for option %s", optionName)
		}
		return opt.assign(value)
	}
	return nil
}

func (p PluginOption) assign(value any) error {
	switch opt := p.Type; opt {
	case PluginOptionTypeString:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected string", p.Name)
		}
		dest, ok := p.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *string", p.Name)
		}
		*dest = v
	case PluginOptionTypeBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected bool", p.Name)
		}
		dest, ok := p.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *bool", p.Name)
		}
		*dest = v
	case PluginOptionTypeInt:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected int", p.Name)
		}
		dest, ok := p.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *int", p.Name)
		}
		*dest = v
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *uint64", p.Name)
		}
		switch tv := value.(type) {
		case uint64:
			*dest = tv
		case int:
			if tv < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", p.Name)
			}
			*dest = uint64(tv)
		default:
			return fmt.Errorf("invalid type for option %s: expected uint64", p.Name)
		}
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", opt, p.Name)
	}
	return nil
}
