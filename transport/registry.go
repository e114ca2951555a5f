package transport

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

type entry struct {
	build Builder
	caps  Capabilities
}

// Registry maps bus.system names to transport builders. Names are matched
// case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// DefaultRegistry holds the transports registered by the sub-packages' init
// functions.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a transport available under name. It panics if build is nil
// or the name is already taken.
func (r *Registry) Register(name string, build Builder, caps Capabilities) {
	key := normalize(name)
	if key == "" {
		panic("transport: Register with empty name")
	}
	if build == nil {
		panic("transport: Register builder is nil for " + key)
	}
	if caps.Name == "" {
		caps.Name = key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[key]; dup {
		panic("transport: Register called twice for " + key)
	}
	r.entries[key] = entry{build: build, caps: caps}
}

// Lookup returns the capabilities of a registered transport.
func (r *Registry) Lookup(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalize(name)]
	return e.caps, ok
}

// GetCapabilities is Lookup that falls back to an empty capability set
// carrying only the name.
func (r *Registry) GetCapabilities(name string) Capabilities {
	if caps, ok := r.Lookup(name); ok {
		return caps
	}
	return Capabilities{Name: normalize(name)}
}

// Build runs the builder selected by cfg.GetBusSystem().
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, fmt.Errorf("config is required")
	}
	name := normalize(cfg.GetBusSystem())

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Transport{}, fmt.Errorf("unknown transport %q (registered: %s)", name, strings.Join(r.Names(), ", "))
	}

	if logger == nil {
		logger = watermill.NopLogger{}
	}
	t, err := e.build(ctx, cfg, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("building %s transport: %w", name, err)
	}
	return t, nil
}

// Names lists the registered transports in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Register adds a transport to DefaultRegistry.
func Register(name string, build Builder, caps Capabilities) {
	DefaultRegistry.Register(name, build, caps)
}

// Build creates a transport from DefaultRegistry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
