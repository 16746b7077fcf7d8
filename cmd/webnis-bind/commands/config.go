package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miquels/webnis/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var dumpFormat string

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runConfigValidate,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the decoded, defaulted configuration",
	RunE:  runConfigDump,
}

func init() {
	configDumpCmd.Flags().StringVar(&dumpFormat, "format", "yaml", "output format: yaml|json")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultBindConfigPath
	}
	var cfg config.BindConfig
	if err := config.Load(path, &cfg); err != nil {
		return err
	}
	fmt.Printf("%s: OK (domain %q, %d upstream servers)\n", path, cfg.Bind.Domain, len(cfg.Upstreams))
	return nil
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultBindConfigPath
	}
	var cfg config.BindConfig
	if err := config.Load(path, &cfg); err != nil {
		return err
	}

	switch dumpFormat {
	case "yaml", "":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(cfg)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", dumpFormat)
	}
}
