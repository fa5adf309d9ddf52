package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"spot_trader/internal/config"
	"spot_trader/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Read persisted trades, balances and signals",
	}
	historyCmd.PersistentFlags().IntP("limit", "n", 20, "Number of entries (0 for all)")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "trades",
		Short: "Completed trades, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(db *sqlite.Store) error {
				n, _ := cmd.Flags().GetInt("limit")
				trades, err := db.RecentTrades(n)
				if err != nil {
					return err
				}
				printTitle(cmd.OutOrStdout(), "📒 Trades")
				if len(trades) == 0 {
					printEmpty(cmd.OutOrStdout(), "trades")
					return nil
				}
				w := table(cmd.OutOrStdout(), "#\tTIME\tPAIR\tSIDE\tQTY\tPRICE\tSIGNAL\tREASON\tPAPER")
				for _, t := range trades {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
						t.TradeNum, t.Time.Format("2006-01-02 15:04:05"), t.Pair, t.Side, t.Qty, t.Price, t.Signal, t.Reason, t.Paper)
				}
				return w.Flush()
			})
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "balances",
		Short: "Balance snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(db *sqlite.Store) error {
				n, _ := cmd.Flags().GetInt("limit")
				snaps, err := db.RecentBalances(n)
				if err != nil {
					return err
				}
				printTitle(cmd.OutOrStdout(), "💰 Balances")
				if len(snaps) == 0 {
					printEmpty(cmd.OutOrStdout(), "balances")
					return nil
				}
				w := table(cmd.OutOrStdout(), "TIME\tASSET\tFREE\tLOCKED")
				for _, s := range snaps {
					for _, b := range s.Balances {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Time.Format("2006-01-02 15:04:05"), b.Asset, b.Free, b.Locked)
					}
				}
				return w.Flush()
			})
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "signals",
		Short: "Non-HOLD strategy signals, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(db *sqlite.Store) error {
				n, _ := cmd.Flags().GetInt("limit")
				sigs, err := db.RecentSignals(n)
				if err != nil {
					return err
				}
				printTitle(cmd.OutOrStdout(), "📡 Signals")
				if len(sigs) == 0 {
					printEmpty(cmd.OutOrStdout(), "signals")
					return nil
				}
				w := table(cmd.OutOrStdout(), "TIME\tPAIR\tSTRATEGY\tACTION\tSIGNAL\tREASON\tPRICE")
				for _, s := range sigs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.8g\n",
						s.Time.Format("2006-01-02 15:04:05"), s.Pair, s.Strategy, s.Action, s.Signal, s.Reason, s.Price)
				}
				return w.Flush()
			})
		},
	})

	return historyCmd
}

func withStore(cfg *config.Config, fn func(*sqlite.Store) error) error {
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func table(out io.Writer, header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	return w
}
