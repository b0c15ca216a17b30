package main

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var umount bool
	cmd := &cobra.Command{
		Use:   "serve <mountpoint>",
		Short: "Mount the configured filesystem tree over FUSE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mnt := args[0]
			logger := util.GetLogger("main")

			if umount {
				// ignore errors when nothing was mounted
				exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
			}
			table, err := a.table()
			if err != nil {
				return err
			}
			srv := server.New(table, a.cfg)
			if err := srv.Serve(mnt); err != nil {
				logger.Error().Err(err).Str("mountpoint", mnt).Msg("Failed to mount filesystem")
				return err
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			logger.Info().Str("mountpoint", mnt).Int("mounts", len(table.Mounts())).Msg("Filesystem mounted successfully")

			sig := <-signals
			logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
			if err := srv.Unmount(); err != nil {
				logger.Error().Err(err).Msg("Failed to unmount filesystem")
				return err
			}
			logger.Info().Msg("Filesystem unmounted successfully")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&umount, "umount", "u", false,
		"Unmount the mountpoint first if needed. Useful for debuggers that don't exit properly.")
	return cmd
}
