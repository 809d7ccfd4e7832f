package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/straja-ai/adaware/internal/auth"
	"github.com/straja-ai/adaware/internal/catalog"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
			defer cancel()
			a.close(shutdownCtx)
		}()

		authz, err := auth.NewFromConfig(cfg.Security)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if !authz.Enabled() {
			logger.Log.Warn("api key authentication disabled; all callers are anonymous")
		}

		if cfg.Catalog.Watch {
			go func() {
				if err := catalog.Watch(ctx, cfg.Catalog.Path, 0, a.engine.SetCatalog); err != nil {
					logger.Log.Warnf("catalog hot reload disabled: %v", err)
				}
			}()
		}

		srv := server.New(cfg, a.engine, a.store, authz, a.tel)
		return srv.Start(ctx)
	},
}
