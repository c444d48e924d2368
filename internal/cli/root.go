// Package cli implements the soft-downloader command line: the desktop GUI
// (default), catalog listing and headless downloads.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BuildInfo is set by main from -ldflags
type BuildInfo struct {
	Version string
	Commit  string
}

// RootCommand is the command tree plus the runtime its PersistentPreRunE
// builds. Close releases that runtime whatever the command returned.
type RootCommand struct {
	*cobra.Command
	rt *Runtime
}

// NewRootCommand builds the command tree
func NewRootCommand(info BuildInfo) *RootCommand {
	var opts runtimeOptions
	root := &RootCommand{}

	rootCmd := &cobra.Command{
		Use:   "soft-downloader",
		Short: "Browse a software catalog and download from it",
		Long: `soft-downloader lists the products of a software catalog and drives a
download backend for them, showing live progress for every download.

Run without a subcommand to open the desktop window, or use 'catalog' and
'get' from a terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version":
				return nil
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			rt.watchConfig()
			root.rt = rt
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd, root.rt)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/soft-downloader/config.toml)")
	flags.StringVar(&opts.envDir, "env-dir", ".", "directory holding .env and .env.local")
	flags.StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.demo, "demo", false, "use a built-in catalog and a simulated backend")

	current := func() *Runtime { return root.rt }
	rootCmd.AddCommand(
		newGUICommand(current),
		newCatalogCommand(current),
		newGetCommand(current),
		newVersionCommand(info),
	)
	root.Command = rootCmd
	return root
}

// Close shuts down the backend opened for the last run, if any. Cobra skips
// post-run hooks when RunE fails, so callers close after Execute returns.
func (r *RootCommand) Close() {
	if r.rt == nil {
		return
	}
	if err := r.rt.Close(); err != nil {
		r.rt.Logger.Warn().Err(err).Msg("failed to close backend")
	}
	r.rt = nil
}

// Execute runs the root command and exits non-zero on error
func Execute(info BuildInfo) {
	root := NewRootCommand(info)
	err := root.Execute()
	root.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
