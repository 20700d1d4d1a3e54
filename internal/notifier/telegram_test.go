package notifier

import (
	"strings"
	"testing"
	"time"

	"instamart-bot/internal/models"
)

var alertTime = time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC) // 12:00:00 IST

func TestFormatAlert_FullRecord(t *testing.T) {
	rec := models.ProductRecord{
		ProductID:  "P123",
		Name:       "Amul Butter 500g",
		Brand:      "Amul",
		Category:   "Dairy",
		MRP:        275,
		OfferPrice: 68.75,
		SKU:        "AMB500",
		VarID:      "V9",
		TileName:   "Butter & Spreads",
	}

	got := formatAlert(rec, 75, alertTime)

	for _, want := range []string{
		"<b>75% OFF</b>",
		"<b>Amul Butter 500g</b>",
		"Brand: Amul",
		"Tile: <i>Butter &amp; Spreads</i>",
		"MRP: ₹275 | Offer: ₹68.75",
		"SKU: AMB500",
		"ID: P123 / V9",
		"2025-06-01 12:00:00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Alert missing %q:\n%s", want, got)
		}
	}
}

func TestFormatAlert_SparseRecordUsesFallbacks(t *testing.T) {
	rec := models.ProductRecord{ProductID: "P1"}

	got := formatAlert(rec, 70, alertTime)

	for _, want := range []string{
		"(no name)",
		"Tile: <i>—</i>",
		"MRP: - | Offer: -",
		"SKU: —",
		"ID: P1 / default",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Alert missing fallback %q:\n%s", want, got)
		}
	}
}

func TestFormatAlert_TileFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		rec  models.ProductRecord
		want string
	}{
		{"tile name wins", models.ProductRecord{ProductID: "P", TileName: "Cheese", Category: "Dairy", TileID: "t1"}, "Tile: <i>Cheese</i>"},
		{"category next", models.ProductRecord{ProductID: "P", Category: "Dairy", TileID: "t1"}, "Tile: <i>Dairy</i>"},
		{"tile id last", models.ProductRecord{ProductID: "P", TileID: "t1"}, "Tile: <i>t1</i>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAlert(tt.rec, 70, alertTime)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q in:\n%s", tt.want, got)
			}
		})
	}
}

func TestFormatAlert_EscapesHTML(t *testing.T) {
	rec := models.ProductRecord{
		ProductID: "P1",
		Name:      `Chips "Hot & Spicy" <new>`,
	}

	got := formatAlert(rec, 70, alertTime)
	if strings.Contains(got, "<new>") {
		t.Errorf("Product name was not escaped:\n%s", got)
	}
	if !strings.Contains(got, "Hot &amp; Spicy") {
		t.Errorf("Expected escaped ampersand in:\n%s", got)
	}
}

func TestFormatAlert_OfferFallsBackToStorePrice(t *testing.T) {
	rec := models.ProductRecord{
		ProductID:  "P1",
		MRP:        100,
		StorePrice: 85,
	}

	got := formatAlert(rec, 70, alertTime)
	if !strings.Contains(got, "MRP: ₹100 | Offer: ₹85") {
		t.Errorf("Expected offer to fall back to store price in:\n%s", got)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{275, "₹275"},
		{68.75, "₹68.75"},
		{99.5, "₹99.50"},
		{1234.56, "₹1,234.56"},
		{100000, "₹100,000"},
		{1234567.5, "₹1,234,567.50"},
		{0, "-"},
		{-10, "-"},
	}

	for _, tt := range tests {
		if got := formatMoney(tt.in); got != tt.want {
			t.Errorf("formatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
