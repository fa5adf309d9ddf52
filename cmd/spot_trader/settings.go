package main

import (
	"encoding/json"
	"fmt"

	"spot_trader/internal/bot"
	"spot_trader/internal/config"
	"spot_trader/internal/storage"

	"github.com/spf13/cobra"
)

func newSettingsCmd(cfg *config.Config) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change trading settings",
		Long: `Trading settings live in a JSON file. A running bot picks up changes
at its next checkpoint.`,
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.NewSettingsStore(cfg.SettingsFile).Load()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			printTitle(cmd.OutOrStdout(), "⚙️  "+cfg.SettingsFile)
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Change one setting",
		Example: "spot_trader settings set buy_percent 1.5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSetting(storage.NewSettingsStore(cfg.SettingsFile), args[0], args[1])
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default settings file for TRADER_EXCHANGE",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storage.NewSettingsStore(cfg.SettingsFile)
			created, err := initSettings(store, cfg.Exchange)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left untouched\n", store.Path())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", store.Path())
			return nil
		},
	})

	return settingsCmd
}

func setSetting(store *storage.SettingsStore, key, value string) error {
	update, err := bot.ParseSetting(key, value)
	if err != nil {
		return err
	}
	current, err := store.Load()
	if err != nil {
		return err
	}
	merged, changed := current.Merge(update)
	if !changed {
		return fmt.Errorf("no change for %s (zero values are ignored)", key)
	}
	if err := merged.Validate(); err != nil {
		return err
	}
	return store.Save(merged)
}

// initSettings writes the defaults, adjusted to the pair naming of exchange.
func initSettings(store *storage.SettingsStore, exchange string) (bool, error) {
	created, err := store.Init()
	if err != nil || !created {
		return created, err
	}
	if exchange != config.ExchangeAlpaca {
		return true, nil
	}
	st, err := store.Load()
	if err != nil {
		return true, err
	}
	st.Exchange = config.ExchangeAlpaca
	st.Symbol = "BTC/USD"
	st.Quote = "USD"
	return true, store.Save(st)
}
