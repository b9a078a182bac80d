package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockdata",
	Short: "Incremental daily OHLCV synchronization for Vietnamese equities",
	Long: `An incremental synchronization engine that keeps a relational store of
daily OHLCV data current for the VN100 index constituents plus the
VNINDEX benchmark.

Each pass derives the date range still missing per symbol, fetches it
from the SSI quote API, normalizes and validates the records, and
persists them idempotently. Re-running a pass over already-synced data
writes nothing.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
