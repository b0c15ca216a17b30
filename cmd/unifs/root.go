package main

import (
	"github.com/brettbedarf/unifs/backends"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/mountfs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	verbose    int

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "unifs",
		Short: "Compose memory, disk and virtual filesystems into one tree",
		Long: `unifs builds a mount table of filesystems from a YAML or JSON config file
and serves it over FUSE or lists it directly.

Environment variables prefixed with UNIFS_ override the config file and are
themselves overridden by flags. A .env file is loaded first when present.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before reading UNIFS_* variables")
	flags.IntVarP(&a.verbose, "verbose", "v", config.InfoVerbose, "Log verbosity between 1 (error) and 5 (trace)")

	cmd.AddCommand(newServeCmd(a), newLsCmd(a))
	return cmd
}

// load resolves the configuration: defaults, then file, then environment,
// then flags.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	// a missing dotenv file is not an error
	_ = godotenv.Load(a.envFile)

	cfg := config.NewDefaultConfig()
	if a.configPath != "" {
		override, err := config.LoadConfigOverrideFile(a.configPath)
		if err != nil {
			return err
		}
		cfg.Merge(override)
	}
	env, err := config.EnvOverride()
	if err != nil {
		return err
	}
	cfg.Merge(env)
	if cmd.Flags().Changed("verbose") {
		cfg.LogLvl = config.LogLevelFromVerbose(a.verbose)
	}

	util.InitializeLoggerTo(cmd.ErrOrStderr(), cfg.LogLvl)
	a.cfg = cfg
	return nil
}

// table builds the configured mount table. A config without mounts or a
// fallback serves an empty in-memory filesystem.
func (a *app) table() (*mountfs.FS, error) {
	cfg := a.cfg
	if len(cfg.Mounts) == 0 && cfg.Fallback == nil {
		cfg.Fallback = &config.BackendSpec{Type: backends.MemoryType}
	}
	return backends.BuildConfig(cfg)
}
