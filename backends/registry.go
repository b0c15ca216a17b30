// Package backends builds filesystems from configuration specs.
//
// Each backend type registers a [Factory] under its type key. Composite
// backends decode nested specs from their options and build them through the
// same registry, so a whole tree of filesystems can be described in one
// config file.
package backends

import (
	"fmt"
	"sync"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/mitchellh/mapstructure"
)

// Factory builds a filesystem from the options of one spec. Nested specs
// are built with r.
type Factory func(r *Registry, opts map[string]any) (unifs.FileSystem, error)

// Registry maps backend types to factories. It is safe for concurrent use.
type Registry struct {
	cfg *config.Config

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry whose backends use cfg.
func NewRegistry(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &Registry{cfg: cfg, factories: make(map[string]Factory)}
}

// Config returns the configuration handed to built filesystems.
func (r *Registry) Config() *config.Config { return r.cfg }

// Register ties a factory to a type key. The first registration for a key
// wins; later ones report false.
func (r *Registry) Register(kind string, f Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return false
	}
	r.factories[kind] = f
	return true
}

// Types returns the registered type keys.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}

// Build picks the factory for spec.Type and runs it.
func (r *Registry) Build(spec config.BackendSpec) (unifs.FileSystem, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no backend registered for type %q", unifs.ErrInvalidArgument, spec.Type)
	}
	fs, err := f(r, spec.Options)
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", spec.Type, err)
	}
	return fs, nil
}

// decode fills out from loosely typed options. Unknown keys are rejected so
// typos in config files surface early.
func decode(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("%w: %v", unifs.ErrInvalidArgument, err)
	}
	return nil
}
