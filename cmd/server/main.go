package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/injector"
	"github.com/zeusync/coedit/internal/server"
)

type flags struct {
	configPath string
	listen     string
	quicListen string
	logLevel   string
	staticDir  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "coedit-server",
		Short:         "Relay for the collaborative plain-text editor",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.listen, "listen", "", "HTTP listen address (overrides config)")
	fs.StringVar(&f.quicListen, "quic-listen", "", "QUIC listen address; enables QUIC (overrides config)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, error or fatal (overrides config)")
	fs.StringVar(&f.staticDir, "static-dir", "", "directory served at / (overrides config)")
	return cmd
}

// loadConfig applies explicitly set flags on top of the config file.
func loadConfig(cmd *cobra.Command, f flags) (server.Config, error) {
	cfg := server.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = server.LoadConfig(f.configPath); err != nil {
			return cfg, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fs.Changed("quic-listen") {
		cfg.QUIC.Enabled = f.quicListen != ""
		cfg.QUIC.Addr = f.quicListen
	}
	if fs.Changed("log-level") {
		level, err := log.ParseLevel(f.logLevel)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	}
	if fs.Changed("static-dir") {
		cfg.StaticDir = f.staticDir
	}
	return cfg, cfg.Validate()
}

func run(parent context.Context, cfg server.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	defer cleanup()

	return srv.Run(ctx)
}
