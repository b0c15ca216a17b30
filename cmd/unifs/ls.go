package main

import (
	"fmt"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/spf13/cobra"
)

func newLsCmd(a *app) *cobra.Command {
	var (
		pattern   string
		recursive bool
		long      bool
		kind      string
	)
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List entries of the configured filesystem tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := upath.Root
			if len(args) == 1 {
				p, err := upath.Parse(args[0])
				if err != nil {
					return err
				}
				dir = p.ToAbsolute()
			}
			target, err := parseTarget(kind)
			if err != nil {
				return err
			}
			option := unifs.TopDirectoryOnly
			if recursive {
				option = unifs.AllDirectories
			}

			table, err := a.table()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for e, err := range unifs.EnumerateEntries(table, dir, pattern, option, target) {
				if err != nil {
					return err
				}
				if !long {
					fmt.Fprintln(out, e.Path)
					continue
				}
				size := "-"
				if !e.IsDir() {
					size = util.Bytes(e.Length)
				}
				fmt.Fprintf(out, "%-9s %10s %s %s\n", e.Kind, size, e.LastWriteTime.Format(time.DateTime), e.Path)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&pattern, "pattern", "p", "*", "Name pattern; supports * and ?")
	flags.BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	flags.BoolVarP(&long, "long", "l", false, "Show kind, size and last write time")
	flags.StringVarP(&kind, "type", "t", "all", "Entry kind: all, file or dir")
	return cmd
}

func parseTarget(kind string) (unifs.SearchTarget, error) {
	switch kind {
	case "all", "":
		return unifs.TargetBoth, nil
	case "file", "f":
		return unifs.TargetFile, nil
	case "dir", "d":
		return unifs.TargetDirectory, nil
	}
	return 0, fmt.Errorf("%w: unknown entry type %q", unifs.ErrInvalidArgument, kind)
}
