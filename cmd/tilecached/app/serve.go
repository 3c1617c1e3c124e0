package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tcapp "github.com/gridpoint/tilecached/internal/app"
	"github.com/gridpoint/tilecached/internal/config"
	"github.com/gridpoint/tilecached/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tile server",
	Long: `Start the tile server to serve cached map tiles.

The server requires a configuration file (--config) that specifies:
- Upstream map sources and tile caches
- Tilesets binding a source, a cache and a tile grid
- Image formats and the services (WMS, TMS) to expose

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (XML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Errorf("Failed to bind address flag: %v", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Errorf("Failed to bind config flag: %v", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Errorf("Failed to mark config flag as required: %v", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	address := viper.GetString("address")
	configPath := viper.GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration from %s (%d tilesets)", configPath, len(cfg.Tilesets()))

	a := tcapp.New(cfg, tcapp.WithAddress(address))

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infof("Received signal %s, shutting down", sig)
	}

	if err := a.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
