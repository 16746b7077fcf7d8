package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miquels/webnis/internal/config"
	"github.com/miquels/webnis/internal/logger"
	"github.com/miquels/webnis/pkg/bind"
	"github.com/miquels/webnis/pkg/metrics"
	"github.com/miquels/webnis/pkg/wnclient"
)

const defaultBindConfigPath = "/etc/webnis/webnis-bind.toml"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the binding daemon",
	Long: `Start the webnis-bind UNIX-socket daemon using the configuration
file given by --config (default: /etc/webnis/webnis-bind.toml).`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultBindConfigPath
	}

	var cfg config.BindConfig
	if err := config.Load(path, &cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		go serveMetrics(cfg.Metrics.Listen)
	}

	servers := make([]string, 0, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		servers = append(servers, u.Server)
	}

	domainCfg := bind.DomainConfig{
		Name:    cfg.Bind.Domain,
		Servers: servers,
		Creds: wnclient.Credentials{
			Schema:   cfg.Bind.HTTPAuthSchema,
			Token:    cfg.Bind.HTTPAuthToken,
			Encoding: cfg.Bind.HTTPAuthEncoding,
		},
		RestrictGetPwUid: cfg.Bind.RestrictGetpwuid,
		RestrictGetGrGid: cfg.Bind.RestrictGetgrgid,
	}

	srv := bind.NewServer(cfg.Bind.Socket, domainCfg, logger.With("domain", cfg.Bind.Domain), metrics.NewBindMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("webnis-bind starting", "socket", cfg.Bind.Socket, "domain", cfg.Bind.Domain)
	return srv.Serve(ctx)
}

func serveMetrics(listen string) {
	if listen == "" {
		listen = ":9091"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("metrics listening", "addr", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
