// Package plugins loads quick-import helpers. A plugin fills in the import
// surface (source, format, destination, mode) for a well-known data source so
// the user only has to confirm the submission.
package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/mrlokans/mapimport/internal/importer"
)

// ErrUnknownPlugin is recorded for keys the resolver has no module for.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Args are the user-supplied parameters of a single Open call.
type Args map[string]string

// Config is the free-form configuration block of one plugin.
type Config map[string]any

// Decode copies the configuration into a typed struct using its mapstructure
// tags.
func (c Config) Decode(out any) error {
	if len(c) == 0 {
		return nil
	}
	if err := mapstructure.Decode(map[string]any(c), out); err != nil {
		return fmt.Errorf("decode plugin config: %w", err)
	}
	return nil
}

// HostContext is what a plugin may use from the host when it is constructed.
type HostContext struct {
	Destinations *importer.Destinations
}

// Plugin is a loaded quick-import helper.
type Plugin interface {
	Name() string
	Open(ctx context.Context, surface importer.Surface, args Args) error
}

// Module constructs a plugin instance.
type Module interface {
	New(host HostContext, cfg Config) (Plugin, error)
}

// ModuleFunc adapts a constructor function to Module.
type ModuleFunc func(host HostContext, cfg Config) (Plugin, error)

func (f ModuleFunc) New(host HostContext, cfg Config) (Plugin, error) { return f(host, cfg) }

// Resolver maps a plugin key to its module.
type Resolver func(ctx context.Context, key string) (Module, error)

// StaticResolver resolves keys from a fixed set of modules.
func StaticResolver(modules map[string]Module) Resolver {
	return func(_ context.Context, key string) (Module, error) {
		m, ok := modules[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, key)
		}
		return m, nil
	}
}

// Builtin resolves the plugins shipped with the service.
func Builtin() Resolver {
	return StaticResolver(map[string]Module{
		OverpassKey: ModuleFunc(NewOverpass),
		DatasetsKey: ModuleFunc(NewDatasets),
	})
}

// ConfigsFrom converts the per-plugin settings read from configuration.
func ConfigsFrom(settings map[string]map[string]any) map[string]Config {
	configs := make(map[string]Config, len(settings))
	for key, cfg := range settings {
		configs[key] = Config(cfg)
	}
	return configs
}
