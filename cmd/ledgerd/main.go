// Command ledgerd serves the practice ledger over Connect and manages
// offline backups of it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/physioledger/internal/config"
	"github.com/mmynk/physioledger/pkg/logging"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Client, session and payment ledger for a physiotherapy practice",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LEDGER_CONFIG"), "Path to the TOML config file")
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newPullCommand())

	return rootCmd
}

// loadConfig reads the config and installs the default logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	return cfg, logging.SetupWithLevel(level), nil
}
