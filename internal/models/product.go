package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"instamart-bot/internal/util"
	"instamart-bot/internal/validator"
)

// ErrDataQuality marks a product row that cannot be classified because a
// required field is missing or malformed. Rows carrying it are skipped,
// never alerted on, and never written to the alert cache.
var ErrDataQuality = errors.New("data quality error")

// RawRow is a product row exactly as the shared store (or the storefront
// scrape) hands it over: every field may be absent or junk. Nothing
// downstream touches a RawRow directly; Normalize decides validity once.
type RawRow struct {
	ProductID  sql.NullString  `db:"product_id"`
	Name       sql.NullString  `db:"name"`
	Brand      sql.NullString  `db:"brand"`
	Category   sql.NullString  `db:"category"`
	MRP        sql.NullFloat64 `db:"mrp"`
	OfferPrice sql.NullFloat64 `db:"offer_price"`
	StorePrice sql.NullFloat64 `db:"store_price"`
	Discount   sql.NullString  `db:"discount"`
	SKU        sql.NullString  `db:"sku"`
	VarID      sql.NullString  `db:"var_id"`
	TileID     sql.NullString  `db:"tile_id"`
	TileName   sql.NullString  `db:"tile_name"`
}

// ProductRecord is a validated product snapshot for one poll cycle.
// ProductID is the sole identity and deduplication key; everything else
// is display payload.
type ProductRecord struct {
	ProductID   string `validate:"required"`
	Name        string
	Brand       string
	Category    string
	MRP         float64 `validate:"gte=0"`
	OfferPrice  float64 `validate:"gte=0"`
	StorePrice  float64 `validate:"gte=0"`
	DiscountPct int     `validate:"gte=0,lte=100"`
	SKU         string
	VarID       string
	TileID      string
	TileName    string
}

// AlertEntry is the persisted last-alerted state for one product. The
// JSON tags are the wire format of the alert cache file and must not
// change without migrating existing cache files.
type AlertEntry struct {
	DiscountPct int       `json:"discount_pct"`
	AlertedAt   time.Time `json:"alerted_at"`
}

var structValidator = validator.New()

// Normalize converts a RawRow into a validated ProductRecord or a
// data-quality error, deciding field validity exactly once at ingestion.
//
// The discount percentage prefers the storefront's explicit discount tag
// ("72%") and falls back to computing from MRP and offer price. A row
// where neither source yields a percentage is a data-quality error.
func Normalize(row RawRow) (ProductRecord, error) {
	if !row.ProductID.Valid || row.ProductID.String == "" {
		return ProductRecord{}, fmt.Errorf("%w: missing product_id", ErrDataQuality)
	}

	rec := ProductRecord{
		ProductID:  row.ProductID.String,
		Name:       row.Name.String,
		Brand:      row.Brand.String,
		Category:   row.Category.String,
		MRP:        row.MRP.Float64,
		OfferPrice: row.OfferPrice.Float64,
		StorePrice: row.StorePrice.Float64,
		SKU:        row.SKU.String,
		VarID:      row.VarID.String,
		TileID:     row.TileID.String,
		TileName:   row.TileName.String,
	}

	pct, ok := 0, false
	if row.Discount.Valid {
		pct, ok = util.ParsePercent(row.Discount.String)
	}
	if !ok && row.MRP.Valid && row.OfferPrice.Valid {
		pct, ok = util.ComputePercent(row.MRP.Float64, row.OfferPrice.Float64)
	}
	if !ok {
		return ProductRecord{}, fmt.Errorf("%w: product %s: no usable discount", ErrDataQuality, rec.ProductID)
	}
	rec.DiscountPct = pct

	if err := structValidator.ValidateStruct(rec); err != nil {
		return ProductRecord{}, fmt.Errorf("%w: product %s: %v", ErrDataQuality, rec.ProductID, err)
	}
	return rec, nil
}
