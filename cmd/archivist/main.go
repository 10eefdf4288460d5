package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/newthinker/archivist/internal/app"
	"github.com/newthinker/archivist/internal/config"
	"github.com/newthinker/archivist/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "archivist - moves tracked files between active and archive storage",
	Long: `archivist archives and unarchives tracked objects. It moves the stored bytes
between tiers (two directory trees, or two S3 storage classes) and reports the
new status to the status tracker, always in that order.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level for production output (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration errors to their field's exit code.
func exitCode(err error) int {
	var fieldErr *config.FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.ExitCode
	}
	return 1
}

// newLogger builds the development logger under --debug, otherwise a JSON
// logger at --log-level.
func newLogger() (*zap.Logger, error) {
	if debug {
		return logger.New(true)
	}
	return logger.NewWithLevel(logLevel)
}

// loadConfig reads and validates the configuration.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults and environment")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp handles common setup and teardown.
func withApp(log *zap.Logger, fn func(a *app.App, cfg *config.Config) error) error {
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing app", zap.Error(err))
		}
	}()

	return fn(a, cfg)
}
