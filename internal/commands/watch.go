package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hoangnph/stock-tracking-data/internal/app"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
)

var (
	watchPort int
	watchHost string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background updater daemon",
	Long: `Run the synchronization engine as a long-lived background service.

The daemon refreshes the symbol universe and performs an incremental
sync pass immediately on startup, then repeats at the configured update
interval. A status API exposes per-symbol sync state and the last run
summary.

The daemon supports graceful shutdown: an in-flight symbol runs to a
terminal state before connections close.

Examples:
  stockdata watch               # Start with default settings
  stockdata watch --port 9090   # Serve the status API on a custom port`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchPort, "port", "p", 0, "Status API port")
	watchCmd.Flags().StringVarP(&watchHost, "host", "H", "", "Status API host")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	cfg.Sync.Mode = config.ModeBackground
	if watchHost != "" {
		cfg.Server.Host = watchHost
	}
	if watchPort != 0 {
		cfg.Server.Port = watchPort
	}

	application := app.New(cfg, log)

	if err := application.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}

	if err := application.Start(); err != nil {
		log.WithError(err).Error("Failed to start application")
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-interrupt
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	if err := application.Stop(); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("Shutdown complete")
	return nil
}
