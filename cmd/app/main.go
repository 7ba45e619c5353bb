package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the FinProfile CLI.
var rootCmd = &cobra.Command{
	Use:   "finprofile",
	Short: "Real-time market profile engine",
	Long: `FinProfile builds per-session volume profiles from a live trade stream,
tracks naked POCs across sessions and emits scored trade signals.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
