// Package config loads and validates the TOML configuration for both
// webnis-bind and webnis-server (spec.md §6 "Configuration schema"),
// following the teacher's load-order and decode-hook conventions.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (WEBNIS_*)
//  3. Configuration file (TOML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/miquels/webnis/pkg/domain"
)

// LoggingConfig controls internal/logger.Init.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig configures the internal /metrics listener (SPEC_FULL.md §4.7).
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// ServerBlock is the TOML "[server]" table (spec.md §6).
type ServerBlock struct {
	TLS         bool     `mapstructure:"tls"`
	CrtFile     string   `mapstructure:"crt_file" validate:"required_if=TLS true"`
	KeyFile     string   `mapstructure:"key_file" validate:"required_if=TLS true"`
	Listen      []string `mapstructure:"listen" validate:"required,min=1"`
	Securenets  []string `mapstructure:"securenets"`
	HTTP2Only   bool     `mapstructure:"http2_only"`
	Concurrency int      `mapstructure:"concurrency"`
	Datalog     string   `mapstructure:"datalog"`
}

// LuaBlock is the TOML "[lua]" table.
type LuaBlock struct {
	Script string `mapstructure:"script"`
}

// ServerConfig is the complete webnis-server configuration.
type ServerConfig struct {
	Logging     LoggingConfig      `mapstructure:"logging"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Server      ServerBlock        `mapstructure:"server"`
	Lua         LuaBlock           `mapstructure:"lua"`
	Domains     []domain.RawDomain `mapstructure:"domain"`
	Maps        []domain.RawMap    `mapstructure:"map"`
	Auths       []domain.RawAuth   `mapstructure:"auth"`
	IncludeMaps string             `mapstructure:"include_maps"`
}

// Table builds the immutable domain.Table from the decoded configuration,
// merging in any maps pulled from IncludeMaps (spec.md §6 "Optional
// include_maps").
func (c *ServerConfig) Table() (*domain.Table, error) {
	maps := c.Maps
	if c.IncludeMaps != "" {
		extra, err := loadIncludedMaps(c.IncludeMaps)
		if err != nil {
			return nil, fmt.Errorf("include_maps %q: %w", c.IncludeMaps, err)
		}
		maps = append(maps, extra...)
	}
	return domain.Build(c.Domains, maps, c.Auths, c.Lua.Script)
}

func loadIncludedMaps(path string) ([]domain.RawMap, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var included struct {
		Maps []domain.RawMap `mapstructure:"map"`
	}
	if err := v.Unmarshal(&included, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, err
	}
	return included.Maps, nil
}

// BindUpstream is one entry in webnis-bind's "[[upstream]]" server pool
// (spec.md §4.1 "Server pool state").
type BindUpstream struct {
	Server string `mapstructure:"server" validate:"required"`
}

// BindBlock is the TOML "[bind]" table: the daemon's domain, listening
// socket, access restrictions and upstream credentials. The *_timeout
// keys are decoded and defaulted here, but the daemon does not read them;
// it runs with the fixed RequestTimeout and InactivityTimeout constants
// of pkg/bind.
type BindBlock struct {
	Domain            string        `mapstructure:"domain" validate:"required"`
	Socket            string        `mapstructure:"socket" validate:"required"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	RestrictGetpwuid  bool          `mapstructure:"restrict_getpwuid"`
	RestrictGetgrgid  bool          `mapstructure:"restrict_getgrgid"`

	HTTPAuthSchema   string `mapstructure:"http_authschema"`
	HTTPAuthToken    string `mapstructure:"http_authtoken"`
	HTTPAuthEncoding string `mapstructure:"http_authencoding"`
}

// BindConfig is the complete webnis-bind configuration.
type BindConfig struct {
	Logging   LoggingConfig  `mapstructure:"logging"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Bind      BindBlock      `mapstructure:"bind"`
	Upstreams []BindUpstream `mapstructure:"upstream" validate:"required,min=1"`
}

// Load reads, decodes, defaults, and validates a *ServerConfig or
// *BindConfig from path.
func Load(path string, out any) error {
	v := viper.New()
	setupViper(v, path, "WEBNIS")

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no configuration file found at %q", path)
	}

	if err := v.Unmarshal(out, viper.DecodeHook(decodeHooks())); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg := out.(type) {
	case *ServerConfig:
		applyServerDefaults(cfg)
	case *BindConfig:
		applyBindDefaults(cfg)
	}

	if err := Validate(out); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func applyServerDefaults(c *ServerConfig) {
	if c.Server.Concurrency == 0 {
		c.Server.Concurrency = 32
	}
	if c.Server.HTTP2Only && c.Server.Concurrency < 100 {
		c.Server.Concurrency = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
}

func applyBindDefaults(c *BindConfig) {
	if c.Bind.ConnectTimeout == 0 {
		c.Bind.ConnectTimeout = 2 * time.Second
	}
	if c.Bind.ReadTimeout == 0 {
		c.Bind.ReadTimeout = 2 * time.Second
	}
	if c.Bind.WriteTimeout == 0 {
		c.Bind.WriteTimeout = 2 * time.Second
	}
	if c.Bind.RequestTimeout == 0 {
		c.Bind.RequestTimeout = time.Second
	}
	if c.Bind.InactivityTimeout == 0 {
		c.Bind.InactivityTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation over a decoded config value.
func Validate(cfg any) error {
	return validate.Struct(cfg)
}

func setupViper(v *viper.Viper, configPath, envPrefix string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("/etc/webnis")
		v.SetConfigName("webnis")
		v.SetConfigType("toml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
