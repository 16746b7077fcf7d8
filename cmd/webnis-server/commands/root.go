// Package commands implements the webnis-server CLI command tree.
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
	Use:   "webnis-server",
	Short: "webnis-server - the Webnis map server",
	Long: `webnis-server answers HTTPS map-lookup and authentication requests
for one or more domains (spec.md §4.2), reading its domain/map/auth
tables from a TOML configuration file.

Use "webnis-server [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: /etc/webnis/webnis-server.toml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigFile returns the --config flag value, or "" to use the default
// search path.
func ConfigFile() string {
	return cfgFile
}
