package scraper

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	"instamart-bot/internal/models"
	"instamart-bot/internal/util"
)

// The listing API answers in several shapes depending on endpoint and
// experiment bucket. Everything below digs items out of whichever shape
// arrived; unknown shapes just yield zero items.

func parseItems(payload map[string]any) []map[string]any {
	if payload == nil {
		return nil
	}

	for _, key := range []string{"products", "cards", "items"} {
		if items := mapList(payload[key]); len(items) > 0 {
			return items
		}
	}

	var items []map[string]any
	widgets := anyList(dig(payload, "data", "widgets"))
	if len(widgets) == 0 {
		widgets = anyList(payload["pageWidgets"])
	}
	for _, w := range widgets {
		wm, ok := w.(map[string]any)
		if !ok {
			continue
		}
		wtype, _ := dig(wm, "widgetInfo", "widgetType").(string)
		if wtype == "" {
			wtype, _ = wm["type"].(string)
		}
		if wtype != "PRODUCT_LIST" {
			continue
		}
		switch data := wm["data"].(type) {
		case []any:
			items = append(items, mapList(data)...)
		case map[string]any:
			for _, key := range []string{"products", "cards", "items"} {
				items = append(items, mapList(data[key])...)
			}
		}
	}
	if len(items) > 0 {
		return items
	}

	if cl, ok := payload["categoryListing"].(map[string]any); ok {
		if items := mapList(cl["products"]); len(items) > 0 {
			return items
		}
	}
	if plp, ok := payload["plp"].(map[string]any); ok {
		if items := mapList(plp["products"]); len(items) > 0 {
			return items
		}
	}
	return nil
}

// hasMore reports the pagination flag when the payload carries one.
func hasMore(payload map[string]any) (more, known bool) {
	d, ok := payload["data"].(map[string]any)
	if !ok {
		d = payload
	}
	if hm, ok := d["hasMore"].(bool); ok {
		return hm, true
	}
	if pag, ok := d["pagination"].(map[string]any); ok {
		if hm, ok := pag["hasMore"].(bool); ok {
			return hm, true
		}
	}
	return false, false
}

var discountTagRegex = regexp.MustCompile(`(\d+)%`)

// explodeItem flattens one listing item into product rows, one per
// variation. Items without variations yield a single row from the
// top-level price block.
func explodeItem(x map[string]any, tileID, tileName, category string) []models.RawRow {
	tag := str(x["listing_description"])
	if tag == "" {
		tag = str(x["product_description"])
	}
	var discount sql.NullString
	if m := discountTagRegex.FindString(tag); m != "" {
		discount = sql.NullString{String: m, Valid: true}
	}

	productID := firstStr(x, "id", "product_id", "itemId")
	if productID == "" {
		productID = str(dig(x, "info", "id"))
	}
	name := firstStr(x, "display_name", "title", "name")
	if name == "" {
		name = str(dig(x, "info", "name"))
	}
	brand := str(x["brand"])
	if brand == "" {
		brand = str(dig(x, "info", "brand"))
	}

	base := models.RawRow{
		ProductID: nullString(productID),
		Name:      nullString(name),
		Brand:     nullString(brand),
		Category:  nullString(category),
		Discount:  discount,
		TileID:    nullString(tileID),
		TileName:  nullString(tileName),
	}

	variations := anyList(x["variations"])
	if len(variations) == 0 {
		row := base
		price, _ := x["price"].(map[string]any)
		row.MRP = firstFloat(price, x, "mrp")
		row.OfferPrice = firstFloat(price, x, "offer_price")
		if !row.OfferPrice.Valid {
			row.OfferPrice = nullFloat(x["finalPrice"])
		}
		row.StorePrice = pickStorePrice(price, x)
		fillDiscount(&row)
		return []models.RawRow{row}
	}

	rows := make([]models.RawRow, 0, len(variations))
	for _, raw := range variations {
		v, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		row := base
		price, _ := v["price"].(map[string]any)
		row.MRP = firstFloat(price, x, "mrp")
		if !row.MRP.Valid {
			row.MRP = nullFloat(dig(x, "price", "mrp"))
		}
		row.OfferPrice = firstFloat(price, x, "offer_price")
		if !row.OfferPrice.Valid {
			row.OfferPrice = nullFloat(x["finalPrice"])
		}
		row.StorePrice = pickStorePrice(price, x)
		row.SKU = nullString(firstStr(v, "sku", "code", "barcode"))
		row.VarID = nullString(firstStr(v, "id", "skuId", "sku_id", "variation_id"))
		fillDiscount(&row)
		rows = append(rows, row)
	}
	return rows
}

// fillDiscount derives a discount tag from the prices when the listing
// didn't carry one, so the stored row always has the field the detector
// prefers.
func fillDiscount(row *models.RawRow) {
	if row.Discount.Valid {
		return
	}
	if !row.MRP.Valid || !row.OfferPrice.Valid {
		return
	}
	if pct, ok := util.ComputePercent(row.MRP.Float64, row.OfferPrice.Float64); ok {
		row.Discount = sql.NullString{String: fmt.Sprintf("%d%%", pct), Valid: true}
	}
}

// dedupeRows keeps the first row seen per (product_id, var_id).
func dedupeRows(rows []models.RawRow) []models.RawRow {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := r.ProductID.String + "\x00" + r.VarID.String
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// --- loose-JSON helpers ---

func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		cm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = cm[k]
	}
	return cur
}

func anyList(v any) []any {
	l, _ := v.([]any)
	return l
}

func mapList(v any) []map[string]any {
	var out []map[string]any
	for _, e := range anyList(v) {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// str renders scalar identifiers that arrive as either strings or JSON
// numbers.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v any) sql.NullFloat64 {
	switch t := v.(type) {
	case float64:
		return sql.NullFloat64{Float64: t, Valid: true}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return sql.NullFloat64{Float64: f, Valid: true}
		}
	}
	return sql.NullFloat64{}
}

// firstFloat prefers the variation price block, then the item itself.
func firstFloat(price, item map[string]any, key string) sql.NullFloat64 {
	if price != nil {
		if f := nullFloat(price[key]); f.Valid {
			return f
		}
	}
	if item != nil {
		if f := nullFloat(item[key]); f.Valid {
			return f
		}
	}
	return sql.NullFloat64{}
}

// pickStorePrice mirrors the listing's fallback chain: the variation's
// store_price, then its plain price, then its MRP, then the item's
// store_price.
func pickStorePrice(price, item map[string]any) sql.NullFloat64 {
	if price != nil {
		for _, key := range []string{"store_price", "price", "mrp"} {
			if f := nullFloat(price[key]); f.Valid {
				return f
			}
		}
	}
	if item != nil {
		if f := nullFloat(item["store_price"]); f.Valid {
			return f
		}
	}
	return sql.NullFloat64{}
}
