package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hembot/hembot/src/app"
	"github.com/hembot/hembot/src/web"
)

// ServeCmd runs the web chat server.
type ServeCmd struct {
	Host string `help:"Host to bind" default:""`
	Port int    `help:"Port to listen on" default:"0"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}

	logger := createServerLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	server := web.NewServer(application.Orchestrator, application.Store, cfg.Cart.ClipsDir, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return server.ListenAndServe(ctx, addr)
}
