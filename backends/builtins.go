package backends

import (
	"fmt"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/aggregatefs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/memfs"
	"github.com/brettbedarf/unifs/mountfs"
	"github.com/brettbedarf/unifs/physfs"
	"github.com/brettbedarf/unifs/readonlyfs"
	"github.com/brettbedarf/unifs/subfs"
	"github.com/brettbedarf/unifs/upath"
)

// Built-in backend types.
const (
	MemoryType    = "memory"
	PhysicalType  = "physical"
	SubType       = "sub"
	ReadOnlyType  = "readonly"
	AggregateType = "aggregate"
	MountType     = "mount"
)

// MemoryOptions seeds a memory backend. Directories are created first,
// then files with their parents.
type MemoryOptions struct {
	Directories []string   `mapstructure:"directories"`
	Files       []FileSeed `mapstructure:"files"`
}

// FileSeed is one file preloaded into a memory backend.
type FileSeed struct {
	Path     string `mapstructure:"path"`
	Content  string `mapstructure:"content"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// PhysicalOptions configures a physical backend. An empty Root serves the
// whole native filesystem.
type PhysicalOptions struct {
	Root string `mapstructure:"root"`
}

// SubOptions roots Source at Base.
type SubOptions struct {
	Base   string             `mapstructure:"base"`
	Source config.BackendSpec `mapstructure:"source"`
}

// ReadOnlyOptions projects Source read-only.
type ReadOnlyOptions struct {
	Source config.BackendSpec `mapstructure:"source"`
}

// AggregateOptions unions Sources. Later sources take priority.
type AggregateOptions struct {
	Sources  []config.BackendSpec `mapstructure:"sources"`
	Fallback *config.BackendSpec  `mapstructure:"fallback"`
}

// MountOptions builds a nested mount table.
type MountOptions struct {
	Mounts   []config.MountSpec  `mapstructure:"mounts"`
	Fallback *config.BackendSpec `mapstructure:"fallback"`
}

// NewDefaultRegistry returns a registry with every built-in backend.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry(cfg)
	r.Register(MemoryType, buildMemory)
	r.Register(PhysicalType, buildPhysical)
	r.Register(SubType, buildSub)
	r.Register(ReadOnlyType, buildReadOnly)
	r.Register(AggregateType, buildAggregate)
	r.Register(MountType, buildMount)
	return r
}

func buildMemory(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o MemoryOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	fs := memfs.NewWithConfig(r.cfg)
	if err := seed(fs, o); err != nil {
		return nil, err
	}
	return fs, nil
}

func seed(fs unifs.FileSystem, o MemoryOptions) error {
	for _, d := range o.Directories {
		p, err := upath.Parse(d)
		if err != nil {
			return err
		}
		if err := fs.CreateDirectory(p); err != nil {
			return err
		}
	}
	for _, f := range o.Files {
		p, err := upath.Parse(f.Path)
		if err != nil {
			return err
		}
		if dir := p.Directory(); dir.IsAbsolute() && !dir.IsRoot() {
			if err := fs.CreateDirectory(dir); err != nil {
				return err
			}
		}
		if err := unifs.WriteAllText(fs, p, f.Content); err != nil {
			return err
		}
		if f.ReadOnly {
			if err := fs.SetAttributes(p, unifs.AttrReadOnly); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildPhysical(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o PhysicalOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	fs, err := physfs.NewWithConfig(o.Root, r.cfg)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func buildSub(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o SubOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	base, err := upath.Parse(o.Base)
	if err != nil {
		return nil, err
	}
	source, err := r.Build(o.Source)
	if err != nil {
		return nil, err
	}
	fs, err := subfs.NewWithConfig(source, base, r.cfg)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func buildReadOnly(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o ReadOnlyOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	source, err := r.Build(o.Source)
	if err != nil {
		return nil, err
	}
	return readonlyfs.NewWithConfig(source, r.cfg), nil
}

func buildAggregate(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o AggregateOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	fallback, err := r.buildFallback(o.Fallback)
	if err != nil {
		return nil, err
	}
	fs := aggregatefs.NewWithConfig(fallback, r.cfg)
	for i, spec := range o.Sources {
		source, err := r.Build(spec)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		if err := fs.AddFileSystem(source); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func buildMount(r *Registry, opts map[string]any) (unifs.FileSystem, error) {
	var o MountOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	return r.BuildMountTable(o.Mounts, o.Fallback)
}

// buildFallback builds spec, or nil when spec is unset.
func (r *Registry) buildFallback(spec *config.BackendSpec) (unifs.FileSystem, error) {
	if spec == nil {
		return nil, nil
	}
	return r.Build(*spec)
}

// BuildMountTable builds every mount and places it in a new mount table. An
// unset fallback leaves unmounted paths unserved.
func (r *Registry) BuildMountTable(mounts []config.MountSpec, fallback *config.BackendSpec) (*mountfs.FS, error) {
	fb, err := r.buildFallback(fallback)
	if err != nil {
		return nil, err
	}
	table := mountfs.NewWithConfig(fb, r.cfg)
	for _, m := range mounts {
		p, err := upath.Parse(m.Path)
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", m.Path, err)
		}
		backer, err := r.Build(m.BackendSpec)
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", m.Path, err)
		}
		if err := table.Mount(p, backer); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// BuildConfig builds the mount table described by cfg.
func BuildConfig(cfg *config.Config) (*mountfs.FS, error) {
	return NewDefaultRegistry(cfg).BuildMountTable(cfg.Mounts, cfg.Fallback)
}
