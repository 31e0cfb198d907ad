package plugins

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry loads plugins in the background and exposes the ones that loaded.
type Registry struct {
	resolver Resolver
	host     HostContext
	configs  map[string]Config

	mu       sync.RWMutex
	plugins  []Plugin
	failures map[string]error
	pending  map[chan struct{}]struct{}
}

// NewRegistry creates an empty registry. configs is keyed by plugin key and
// may be nil.
func NewRegistry(resolver Resolver, host HostContext, configs map[string]Config) *Registry {
	return &Registry{
		resolver: resolver,
		host:     host,
		configs:  configs,
		failures: make(map[string]error),
		pending:  make(map[chan struct{}]struct{}),
	}
}

// Load starts loading every key concurrently and returns immediately. A key
// that fails to load is recorded in Failures and never affects the others.
func (r *Registry) Load(ctx context.Context, keys []string) {
	g := &errgroup.Group{}
	done := make(chan struct{})

	r.mu.Lock()
	r.pending[done] = struct{}{}
	r.mu.Unlock()

	for _, key := range keys {
		key := key
		g.Go(func() error {
			r.load(ctx, key)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		r.mu.Lock()
		delete(r.pending, done)
		r.mu.Unlock()
		close(done)
	}()
}

func (r *Registry) load(ctx context.Context, key string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(key, fmt.Errorf("plugin %s panicked: %v", key, rec))
		}
	}()

	module, err := r.resolver(ctx, key)
	if err != nil {
		r.fail(key, fmt.Errorf("resolve plugin %s: %w", key, err))
		return
	}
	r.mu.RLock()
	cfg := r.configs[key]
	r.mu.RUnlock()

	plugin, err := module.New(r.host, cfg)
	if err != nil {
		r.fail(key, fmt.Errorf("create plugin %s: %w", key, err))
		return
	}

	r.mu.Lock()
	r.replace(plugin)
	delete(r.failures, key)
	r.mu.Unlock()
	log.Printf("[PLUGINS] Loaded %s", plugin.Name())
}

// replace swaps a plugin already loaded under the same name, or appends it.
// Callers hold r.mu.
func (r *Registry) replace(plugin Plugin) {
	for i, p := range r.plugins {
		if p.Name() == plugin.Name() {
			r.plugins[i] = plugin
			return
		}
	}
	r.plugins = append(r.plugins, plugin)
}

// SetConfigs replaces the plugin configuration used by subsequent Load calls.
// Loading a key again rebuilds its plugin with the new configuration.
func (r *Registry) SetConfigs(configs map[string]Config) {
	r.mu.Lock()
	r.configs = configs
	r.mu.Unlock()
}

func (r *Registry) fail(key string, err error) {
	r.mu.Lock()
	r.failures[key] = err
	r.mu.Unlock()
	log.Printf("[PLUGINS] %v", err)
}

// Wait blocks until every Load started so far has finished or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.RLock()
	pending := make([]chan struct{}, 0, len(r.pending))
	for done := range r.pending {
		pending = append(pending, done)
	}
	r.mu.RUnlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Plugins returns the plugins loaded so far. The order is unspecified.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}

// Names returns the sorted names of the loaded plugins.
func (r *Registry) Names() []string {
	plugins := r.Plugins()
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
	}
	sort.Strings(names)
	return names
}

// Get returns the loaded plugin with the given name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Failures returns the load error of every key that failed so far.
func (r *Registry) Failures() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}
