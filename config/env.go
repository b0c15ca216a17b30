package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by EnvOverride.
const (
	EnvLogLevel          = "UNIFS_LOG_LEVEL"
	EnvWatcherBufferSize = "UNIFS_WATCHER_BUFFER_SIZE"
	EnvFuseDebug         = "UNIFS_FUSE_DEBUG"
	EnvFsName            = "UNIFS_FS_NAME"
)

// EnvOverride builds an override from UNIFS_* environment variables. Unset
// variables leave the matching field nil.
func EnvOverride() (*ConfigOverride, error) {
	return envOverride(os.LookupEnv)
}

func envOverride(lookup func(string) (string, bool)) (*ConfigOverride, error) {
	var o ConfigOverride
	if v, ok := lookup(EnvLogLevel); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		o.LogLvl = &n
	}
	if v, ok := lookup(EnvWatcherBufferSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvWatcherBufferSize, err)
		}
		o.WatcherBufferSize = &n
	}
	if v, ok := lookup(EnvFuseDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvFuseDebug, err)
		}
		o.Debug = &b
	}
	if v, ok := lookup(EnvFsName); ok {
		o.FsName = &v
	}
	return &o, nil
}
