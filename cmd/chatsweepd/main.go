package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/chatsweep/chatsweep/internal/config"
	"github.com/chatsweep/chatsweep/internal/history"
	"github.com/chatsweep/chatsweep/internal/logger"
	"github.com/chatsweep/chatsweep/internal/messaging"
	"github.com/chatsweep/chatsweep/internal/server"
	"github.com/chatsweep/chatsweep/internal/session"
)

func main() {
	root := &cobra.Command{
		Use:   "chatsweepd",
		Short: "chatsweep control-panel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				cfg.Database.Path = dbPath
			}

			if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			factory, err := capabilityFactory(cfg)
			if err != nil {
				return err
			}

			ledger, err := history.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer ledger.Close()

			srv := server.New(ledger, session.NewRegistry(), factory)
			httpSrv := &http.Server{
				Addr:    cfg.Server.Addr,
				Handler: srv,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("chatsweepd listening", "addr", cfg.Server.Addr, "driver", cfg.Messaging.Driver)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				return httpSrv.Close()
			case err := <-errCh:
				return err
			}
		},
	}

	root.Flags().String("addr", "", "listen address (overrides config)")
	root.Flags().String("db", "", "history database path (overrides config)")
	root.Flags().String("config", "", "path to config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func capabilityFactory(cfg *config.Config) (messaging.Factory, error) {
	switch cfg.Messaging.Driver {
	case "demo":
		return messaging.NewDemo, nil
	default:
		return nil, fmt.Errorf("unknown messaging driver %q", cfg.Messaging.Driver)
	}
}
