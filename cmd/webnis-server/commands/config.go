package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miquels/webnis/internal/config"
	"github.com/miquels/webnis/internal/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var dumpFormat string
var watchConfig bool

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
	configValidateCmd.Flags().BoolVar(&watchConfig, "watch", false, "keep running and re-validate whenever the file changes")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configDumpCmd)
}

func validateOnce(path string) error {
	var cfg config.ServerConfig
	if err := config.Load(path, &cfg); err != nil {
		return err
	}
	if _, err := cfg.Table(); err != nil {
		return fmt.Errorf("configuration loaded but domain table is inconsistent: %w", err)
	}
	fmt.Printf("%s: OK (%d domains, %d maps, %d auths)\n", path, len(cfg.Domains), len(cfg.Maps), len(cfg.Auths))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultServerConfigPath
	}

	if !watchConfig {
		return validateOnce(path)
	}

	if err := validateOnce(path); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	w, err := config.WatchFile(path, nil, func() {
		if err := validateOnce(path); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Close()

	logger.Info("watching for configuration changes", "path", path)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultServerConfigPath
	}
	var cfg config.ServerConfig
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
