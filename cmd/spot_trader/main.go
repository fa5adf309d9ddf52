package main

import (
	"fmt"
	"os"
	"strings"

	"spot_trader/internal/config"

	"github.com/spf13/cobra"
)

const VersionFile = "version.latest"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "spot_trader",
		Short: "Automated spot trading bot",
		Long: `spot_trader runs one trading strategy (percentage, volume, bollinger or orderbook)
on one spot pair, live or against the paper simulator, with stop-loss protection.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("settings"); path != "" {
				loaded.SettingsFile = path
			}
			if path, _ := cmd.Flags().GetString("db"); path != "" {
				loaded.DBPath = path
			}
			loaded.Version = readVersion()
			*cfg = *loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().String("settings", "", "Settings file path (overrides TRADER_SETTINGS_FILE)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides TRADER_DB_PATH)")

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newSettingsCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newVersionCmd(cfg))
	return rootCmd
}

func newVersionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spot_trader %s\n", cfg.Version)
		},
	}
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
