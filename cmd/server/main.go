package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sickleconnect/server/internal/app"
	"github.com/sickleconnect/server/internal/config"
	"github.com/sickleconnect/server/internal/log"
)

func main() {
	var configPath string
	var addr string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	bootLogger := log.New("info")

	cfg, loadedFrom, err := config.Load(bootLogger, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", loadedFrom).Str("addr", cfg.Addr).Msg("starting sickleconnect server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
