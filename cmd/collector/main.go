package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"instamart-bot/internal/config"
	"instamart-bot/internal/poller"
	"instamart-bot/internal/scraper"
	"instamart-bot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env file not found, using process environment")
	}

	cfg, err := config.LoadCollector()
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
	if err := products.Init(ctx); err != nil {
		slog.Error("Critical error initializing products table", "error", err)
		os.Exit(1)
	}

	sc := scraper.New(cfg.CategoryURLs)
	slog.Info("Collector started",
		"table", cfg.ProductsTable,
		"categories", len(cfg.CategoryURLs),
		"scrape_interval", cfg.ScrapeInterval,
	)

	poller.Run(ctx, cfg.ScrapeInterval, func(cycleCtx context.Context) {
		rows, err := sc.ScrapeAll(cycleCtx)
		if err != nil {
			slog.Error("Scrape pass failed, will retry on next interval", "error", err)
			return
		}
		if len(rows) == 0 {
			slog.Warn("Scrape pass produced no rows")
			return
		}

		stats, err := products.UpsertBatch(cycleCtx, rows)
		if err != nil {
			slog.Error("Upsert failed", "error", err)
		}
		slog.Info("Upsert summary", "new", stats.New, "changed", stats.Changed, "skipped", stats.Skipped)
	})

	slog.Info("Collector stopped.")
}
