package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"spot_trader/internal/bot"
	"spot_trader/internal/clock"
	"spot_trader/internal/config"
	"spot_trader/internal/logger"
	"spot_trader/internal/market/alpaca"
	"spot_trader/internal/storage"
	"spot_trader/internal/storage/sqlite"
	"spot_trader/internal/telegram"
	"spot_trader/internal/telemetry"
	"spot_trader/internal/trade"

	"github.com/spf13/cobra"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the trading engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cfg)
		},
	}
}

func runBot(cfg *config.Config) error {
	logger.Setup(cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups, cfg.LogLevel)

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer db.Close()

	hub := telemetry.NewHub()

	var notifier trade.Notifier
	var tg *telegram.Client
	if cfg.TelegramEnabled() {
		tg = telegram.NewClient("", cfg.TelegramBotToken, cfg.TelegramChatID)
		notifier = tg
	} else {
		log.Println("Warning: Telegram credentials missing, notifications and commands disabled")
	}

	clk := clock.Real{}
	ctrl, err := bot.New(bot.Deps{
		Store:     storage.NewSettingsStore(cfg.SettingsFile),
		Providers: bot.NewProviderFactory(cfg, clk),
		Recorder:  bot.Recorders{db, hub},
		Notifier:  notifier,
		Clock:     clk,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		log.Println("⚠️ Shutting down: system signal received.")
	}()

	go hub.Run(ctx)
	if cfg.HTTPAddr != "" {
		srv := telemetry.NewServer(ctrl, hub)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				log.Printf("ERROR: [Telemetry] %v", err)
			}
		}()
	}
	if tg != nil {
		go tg.Listen(ctx, ctrl.HandleCommand)
	}

	s := ctrl.Settings()
	if cfg.PriceStream && s.Exchange == config.ExchangeAlpaca {
		ts := alpaca.NewTradeStream(cfg.AlpacaKeyID, cfg.AlpacaSecretKey, []string{s.Symbol}, ctrl.ObservePrice)
		go ts.Run(ctx)
	}
	log.Printf("Spot Trader %s initialized: %s %s on %s (%s)", cfg.Version, s.Strategy, s.Symbol, s.Exchange, s.Mode)
	if notifier != nil {
		notifier.Notify(fmt.Sprintf("🚀 Spot Trader %s started: %s %s (%s)", cfg.Version, s.Strategy, s.Symbol, s.Mode))
	}

	err = ctrl.Run(ctx, cfg.WatchSettings, cfg.WatchDebounce())
	log.Println("🛑 Main loop stopped")
	return err
}
