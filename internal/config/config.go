package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultThresholdPct  = 70
	defaultPollMinutes   = 10
	defaultScrapeMinutes = 5
	defaultCachePath     = "notified_cache.json"
	defaultProductsTable = "instamart_products"

	// The original watch list: one parent category page; more can be
	// supplied via CATEGORY_URLS.
	defaultCategoryURL = "https://www.swiggy.com/instamart/category-listing?categoryName=Dairy%2C+Bread+and+Eggs&custom_back=true&filterName=&offset=0&showAgeConsent=false&storeId=788745&taxonomyType=Speciality+taxonomy+1"
)

// Config holds all runtime parameters for both the collector and the
// detector processes. Each process validates only the credentials it
// actually needs at startup.
type Config struct {
	DatabaseURL   string
	ProductsTable string

	TelegramBotToken string
	TelegramChatID   int64

	ThresholdPct   int
	PollInterval   time.Duration
	ScrapeInterval time.Duration
	AlertCachePath string

	CategoryURLs []string
}

// LoadDetector loads the configuration for the detector process and
// fails fast when the Telegram credentials or the database URL are
// missing.
func LoadDetector() (*Config, error) {
	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required but not set")
	}

	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID environment variable is required but not set")
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", chatIDStr, err)
	}
	cfg.TelegramChatID = chatID

	return cfg, nil
}

// LoadCollector loads the configuration for the collector process. The
// Telegram credentials are not required here.
func LoadCollector() (*Config, error) {
	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CATEGORY_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.CategoryURLs = urls
	}
	if len(cfg.CategoryURLs) == 0 {
		slog.Info("CATEGORY_URLS not set, using default category", "url", defaultCategoryURL)
		cfg.CategoryURLs = []string{defaultCategoryURL}
	}

	return cfg, nil
}

func loadCommon() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required but not set")
	}

	table := os.Getenv("PRODUCTS_TABLE")
	if table == "" {
		table = defaultProductsTable
	}

	threshold := defaultThresholdPct
	if v := os.Getenv("DISCOUNT_THRESHOLD_PCT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 100 {
			return nil, fmt.Errorf("invalid DISCOUNT_THRESHOLD_PCT %q: must be an integer between 0 and 100", v)
		}
		threshold = parsed
	}

	pollMinutes := defaultPollMinutes
	if v := os.Getenv("POLL_MINUTES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid POLL_MINUTES %q: must be a positive integer", v)
		}
		pollMinutes = parsed
	}

	scrapeMinutes := defaultScrapeMinutes
	if v := os.Getenv("SCRAPE_INTERVAL_MINUTES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid SCRAPE_INTERVAL_MINUTES %q: must be a positive integer", v)
		}
		scrapeMinutes = parsed
	}

	cachePath := os.Getenv("ALERT_CACHE_PATH")
	if cachePath == "" {
		cachePath = defaultCachePath
	}

	return &Config{
		DatabaseURL:    databaseURL,
		ProductsTable:  table,
		ThresholdPct:   threshold,
		PollInterval:   time.Duration(pollMinutes) * time.Minute,
		ScrapeInterval: time.Duration(scrapeMinutes) * time.Minute,
		AlertCachePath: cachePath,
	}, nil
}
