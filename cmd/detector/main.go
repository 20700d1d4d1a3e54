package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"instamart-bot/internal/cache"
	"instamart-bot/internal/config"
	"instamart-bot/internal/detector"
	"instamart-bot/internal/notifier"
	"instamart-bot/internal/poller"
	"instamart-bot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env file not found, using process environment")
	}

	cfg, err := config.LoadDetector()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Critical error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	products := store.New(db, cfg.ProductsTable)

	tg, err := notifier.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		slog.Error("Critical error initializing Telegram notifier", "error", err)
		os.Exit(1)
	}

	runner := detector.NewRunner(
		products,
		tg,
		cache.New(cfg.AlertCachePath),
		detector.New(cfg.ThresholdPct),
	)

	tg.AnnounceStartup(cfg.PollInterval)
	slog.Info("Detector started",
		"table", cfg.ProductsTable,
		"threshold_pct", cfg.ThresholdPct,
		"poll_interval", cfg.PollInterval,
	)

	poller.Run(ctx, cfg.PollInterval, func(cycleCtx context.Context) {
		if err := runner.RunCycle(cycleCtx); err != nil {
			slog.Error("Poll cycle failed, will retry on next interval", "error", err)
		}
	})

	slog.Info("Detector stopped.")
}
