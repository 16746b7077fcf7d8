// Package commands implements the webnis-bind CLI command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time via -ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "webnis-bind",
	Short: "webnis-bind - the Webnis binding daemon",
	Long: `webnis-bind is the per-host daemon the NSS and PAM adapters talk to
over a UNIX socket (spec.md §4.1). It resolves requests against a pool
of map servers for exactly one configured domain, retrying and failing
over between servers as needed.

Use "webnis-bind [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: /etc/webnis/webnis-bind.toml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigFile returns the --config flag value, or "" to use the default
// search path.
func ConfigFile() string {
	return cfgFile
}
