package config

// MountOptions holds high-level settings for serving over FUSE.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug        bool    // fuse debug logs
	FsName       string  // mount's FsName
	Name         string  // mount's Name
	AttrTimeout  float64 // attribute cache timeout in seconds
	EntryTimeout float64 // directory entry cache timeout in seconds
}

// BackendSpec describes a filesystem to build. Options are decoded by the
// backend registered for Type.
type BackendSpec struct {
	Type    string         `yaml:"type" json:"type" mapstructure:"type"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty" mapstructure:"options"`
}

// MountSpec places a backend at Path in the mount table.
type MountSpec struct {
	Path        string `yaml:"path" json:"path" mapstructure:"path"`
	BackendSpec `yaml:",inline" mapstructure:",squash"`
}
