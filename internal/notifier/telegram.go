// Package notifier renders alert decisions into Telegram messages and
// hands them to the bot API. Sink failures are logged and reported as
// false, never propagated: the poll schedule is the retry mechanism.
package notifier

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"instamart-bot/internal/detector"
	"instamart-bot/internal/models"
)

var ist = time.FixedZone("IST", (5*60+30)*60)

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	now    func() time.Time
}

func New(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	bot.Debug = false
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, now: time.Now}, nil
}

// Notify formats and sends one alert. Returns false on any sink failure.
func (t *Telegram) Notify(decision detector.Decision) bool {
	text := formatAlert(decision.Record, decision.DiscountPct, t.now())
	if err := t.send(text); err != nil {
		slog.Error("Telegram send failed", "product_id", decision.ProductID, "error", err)
		return false
	}
	return true
}

// AnnounceStartup posts a one-line liveness message when the detector
// process comes up.
func (t *Telegram) AnnounceStartup(pollInterval time.Duration) {
	text := fmt.Sprintf("✅ Instamart discount bot up. Poll every %dm.", int(pollInterval.Minutes()))
	if err := t.send(text); err != nil {
		slog.Warn("Startup announcement failed", "error", err)
	}
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func formatAlert(rec models.ProductRecord, pct int, at time.Time) string {
	name := rec.Name
	if name == "" {
		name = "(no name)"
	}
	tile := rec.TileName
	if tile == "" {
		tile = rec.Category
	}
	if tile == "" {
		tile = rec.TileID
	}
	if tile == "" {
		tile = "—"
	}
	sku := rec.SKU
	if sku == "" {
		sku = "—"
	}
	varID := rec.VarID
	if varID == "" {
		varID = "default"
	}
	offer := rec.OfferPrice
	if offer <= 0 {
		offer = rec.StorePrice
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔥 <b>%d%% OFF</b>\n", pct)
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(name))
	if rec.Brand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", html.EscapeString(rec.Brand))
	}
	fmt.Fprintf(&b, "Tile: <i>%s</i>\n", html.EscapeString(tile))
	fmt.Fprintf(&b, "MRP: %s | Offer: %s\n", formatMoney(rec.MRP), formatMoney(offer))
	fmt.Fprintf(&b, "SKU: %s\n", html.EscapeString(sku))
	fmt.Fprintf(&b, "ID: %s / %s\n", rec.ProductID, varID)
	fmt.Fprintf(&b, "⏱ %s", at.In(ist).Format("2006-01-02 15:04:05"))
	return b.String()
}

// formatMoney renders a rupee amount with thousands grouping, dropping a
// trailing ".00" the way the alerts have always read.
func formatMoney(v float64) string {
	if v <= 0 {
		return "-"
	}
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	b.WriteString("₹")
	for i := 0; i < len(whole); i++ {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(whole[i])
	}
	b.WriteString(frac)
	return strings.TrimSuffix(b.String(), ".00")
}
