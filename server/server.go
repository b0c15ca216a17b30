// Package server exposes a unifs.FileSystem over FUSE.
package server

import (
	"os"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"
)

// Server serves one filesystem at one mount point.
type Server struct {
	fs     unifs.FileSystem
	cfg    *config.Config
	server *fuse.Server
	logger zerolog.Logger
}

// New creates a server for fsys. Nothing is mounted until Serve.
func New(fsys unifs.FileSystem, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	return &Server{fs: fsys, cfg: cfg, logger: util.GetLogger("server")}
}

// FileSystem returns the served filesystem.
func (s *Server) FileSystem() unifs.FileSystem { return s.fs }

func (s *Server) options() *fs.Options {
	opts := s.cfg.MountOptions
	attr := time.Duration(opts.AttrTimeout * float64(time.Second))
	entry := time.Duration(opts.EntryTimeout * float64(time.Second))
	return &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug,
			Logger: util.NewLogLogger("fuse", util.DebugLevel),
		},
		AttrTimeout:  &attr,
		EntryTimeout: &entry,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
	}
}

// Serve mounts the filesystem at mountPoint and returns once the kernel
// has acknowledged the mount. Requests are served in the background until
// Unmount.
func (s *Server) Serve(mountPoint string) error {
	srv, err := fs.Mount(mountPoint, &node{srv: s}, s.options())
	if err != nil {
		return err
	}
	s.server = srv
	s.logger.Info().Str("mountpoint", mountPoint).Msg("Mounted")
	return nil
}

// ServeAsync runs Serve in a goroutine and reports its result.
func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()
	return done
}

// Wait blocks until the filesystem is unmounted.
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Unmounting")
	return s.server.Unmount()
}
