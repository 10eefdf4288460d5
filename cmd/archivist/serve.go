package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/archivist/internal/api"
	"github.com/newthinker/archivist/internal/app"
	"github.com/newthinker/archivist/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP intake server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	return withApp(log, func(a *app.App, cfg *config.Config) error {
		log.Info("starting archivist server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)

		server, err := api.NewServer(api.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			APIKey:       cfg.Server.APIKey,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			MetricsPath:  cfg.Metrics.Path,
		}, api.Dependencies{
			Router:   a.Router(),
			Verifier: a.Coordinator(),
			Journal:  a.Journal(),
			Metrics:  a.Metrics(),
		}, log)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		// Wait for shutdown signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info("shutting down archivist server")

		// In-flight moves finish before the process exits.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(ctx)
	})
}
