package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miquels/webnis/internal/config"
	"github.com/miquels/webnis/internal/logger"
	"github.com/miquels/webnis/pkg/metrics"
	"github.com/miquels/webnis/pkg/securenets"
	"github.com/miquels/webnis/pkg/server"
	"github.com/miquels/webnis/pkg/server/datalog"
)

const defaultServerConfigPath = "/etc/webnis/webnis-server.toml"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the map server",
	Long: `Start the webnis-server HTTPS map server using the configuration
file given by --config (default: /etc/webnis/webnis-server.toml).`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultServerConfigPath
	}

	var cfg config.ServerConfig
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

	table, err := cfg.Table()
	if err != nil {
		return fmt.Errorf("failed to build domain table: %w", err)
	}

	nets, err := securenets.Parse(strings.NewReader(strings.Join(cfg.Server.Securenets, "\n")))
	if err != nil {
		return fmt.Errorf("failed to parse securenets: %w", err)
	}

	var dlog *datalog.Log
	if cfg.Server.Datalog != "" {
		dlog, err = datalog.Open(cfg.Server.Datalog)
		if err != nil {
			return fmt.Errorf("failed to open datalog %q: %w", cfg.Server.Datalog, err)
		}
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		go serveMetrics(cfg.Metrics.Listen)
	}

	srv, err := server.NewServer(table, server.Config{
		Listen:      cfg.Server.Listen,
		TLS:         cfg.Server.TLS,
		CrtFile:     cfg.Server.CrtFile,
		KeyFile:     cfg.Server.KeyFile,
		Concurrency: cfg.Server.Concurrency,
		Securenets:  nets,
		Datalog:     dlog,
	}, cfg.Lua.Script)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("webnis-server starting", "listen", cfg.Server.Listen, "tls", cfg.Server.TLS)
	return srv.Start(ctx)
}

func serveMetrics(listen string) {
	if listen == "" {
		listen = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("metrics listening", "addr", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
