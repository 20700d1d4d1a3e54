// Package store is the client for the shared products table in Postgres.
// The collector upserts scraped rows into it; the detector reads full
// snapshots from it. The two processes coordinate through this table
// only.
package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"instamart-bot/internal/models"
	"instamart-bot/internal/util"
)

const (
	selectPageSize  = 1000
	upsertBatchSize = 400
)

// Connect opens a pooled connection to Postgres and verifies it with a
// ping, retrying with backoff to ride out transient startup failures
// (e.g. the database container still coming up).
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = util.RetryWithBackoff(ctx, 4, func(attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			slog.Warn("Database ping failed", "attempt", attempt+1, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return db, nil
}

// Client wraps the products table. The table name comes from config, so
// every query quotes it explicitly.
type Client struct {
	db    *sqlx.DB
	table string
}

func New(db *sqlx.DB, table string) *Client {
	return &Client{db: db, table: table}
}

// Init creates the products table if it does not exist yet. Idempotent.
func (c *Client) Init(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			product_id  TEXT NOT NULL,
			var_id      TEXT NOT NULL,
			name        TEXT,
			brand       TEXT,
			category    TEXT,
			mrp         DOUBLE PRECISION,
			offer_price DOUBLE PRECISION,
			store_price DOUBLE PRECISION,
			discount    TEXT,
			sku         TEXT,
			tile_id     TEXT,
			tile_name   TEXT,
			data_hash   TEXT,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (product_id, var_id)
		)`, pq.QuoteIdentifier(c.table))
	if _, err := c.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to initialize products table %s: %w", c.table, err)
	}
	return nil
}

// SelectAll reads the current snapshot of every tracked product, paging
// internally so a large table doesn't need a streaming interface. The
// pages are separate queries, not one transaction, so a concurrent
// collector upsert can shift a row between pages; the snapshot may then
// miss a row or carry it twice. A duplicate classifies identically and a
// missed row is picked up on the next poll.
func (c *Client) SelectAll(ctx context.Context) ([]models.RawRow, error) {
	base := fmt.Sprintf(`
		SELECT product_id, var_id, name, brand, category,
		       mrp, offer_price, store_price, discount,
		       sku, tile_id, tile_name
		FROM %s
		ORDER BY product_id, var_id
		LIMIT $1 OFFSET $2`, pq.QuoteIdentifier(c.table))

	var out []models.RawRow
	for offset := 0; ; offset += selectPageSize {
		var page []models.RawRow
		if err := c.db.SelectContext(ctx, &page, base, selectPageSize, offset); err != nil {
			return nil, fmt.Errorf("failed to select products page at offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < selectPageSize {
			break
		}
	}
	return out, nil
}

// UpsertStats summarizes one UpsertBatch run.
type UpsertStats struct {
	New     int
	Changed int
	Skipped int
}

type dbRow struct {
	models.RawRow
	DataHash string `db:"data_hash"`
}

// UpsertBatch writes scraped rows keyed on (product_id, var_id) in
// batches, skipping rows whose content fingerprint matches what is
// already stored so unchanged products cost no writes. Rows without both
// identifiers are dropped.
func (c *Client) UpsertBatch(ctx context.Context, rows []models.RawRow) (UpsertStats, error) {
	var stats UpsertStats

	var valid []dbRow
	for _, r := range rows {
		if !r.ProductID.Valid || r.ProductID.String == "" || !r.VarID.Valid || r.VarID.String == "" {
			continue
		}
		valid = append(valid, dbRow{RawRow: r, DataHash: Fingerprint(r)})
	}
	if len(valid) == 0 {
		return stats, nil
	}

	for start := 0; start < len(valid); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := c.upsertOne(ctx, valid[start:end], &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (c *Client) upsertOne(ctx context.Context, batch []dbRow, stats *UpsertStats) error {
	existing, err := c.fetchExistingHashes(ctx, batch)
	if err != nil {
		// Fall back to upserting the whole batch rather than losing it.
		slog.Warn("Failed to fetch existing hashes, upserting full batch", "error", err)
		existing = nil
	}

	var delta []dbRow
	for _, r := range batch {
		key := r.ProductID.String + "\x00" + r.VarID.String
		prevHash, ok := existing[key]
		switch {
		case !ok:
			stats.New++
			delta = append(delta, r)
		case prevHash != r.DataHash:
			stats.Changed++
			delta = append(delta, r)
		default:
			stats.Skipped++
		}
	}
	if len(delta) == 0 {
		return nil
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (product_id, var_id, name, brand, category,
		                mrp, offer_price, store_price, discount,
		                sku, tile_id, tile_name, data_hash, updated_at)
		VALUES (:product_id, :var_id, :name, :brand, :category,
		        :mrp, :offer_price, :store_price, :discount,
		        :sku, :tile_id, :tile_name, :data_hash, now())
		ON CONFLICT (product_id, var_id) DO UPDATE SET
			name        = EXCLUDED.name,
			brand       = EXCLUDED.brand,
			category    = EXCLUDED.category,
			mrp         = EXCLUDED.mrp,
			offer_price = EXCLUDED.offer_price,
			store_price = EXCLUDED.store_price,
			discount    = EXCLUDED.discount,
			sku         = EXCLUDED.sku,
			tile_id     = EXCLUDED.tile_id,
			tile_name   = EXCLUDED.tile_name,
			data_hash   = EXCLUDED.data_hash,
			updated_at  = now()`, pq.QuoteIdentifier(c.table))

	if _, err := c.db.NamedExecContext(ctx, q, delta); err != nil {
		return fmt.Errorf("failed to upsert batch of %d rows: %w", len(delta), err)
	}
	return nil
}

func (c *Client) fetchExistingHashes(ctx context.Context, batch []dbRow) (map[string]string, error) {
	prodIDs := make([]string, 0, len(batch))
	varIDs := make([]string, 0, len(batch))
	for _, r := range batch {
		prodIDs = append(prodIDs, r.ProductID.String)
		varIDs = append(varIDs, r.VarID.String)
	}

	q := fmt.Sprintf(`
		SELECT product_id, var_id, COALESCE(data_hash, '') AS data_hash
		FROM %s
		WHERE product_id = ANY($1) AND var_id = ANY($2)`, pq.QuoteIdentifier(c.table))

	var found []struct {
		ProductID string `db:"product_id"`
		VarID     string `db:"var_id"`
		DataHash  string `db:"data_hash"`
	}
	if err := c.db.SelectContext(ctx, &found, q, pq.Array(prodIDs), pq.Array(varIDs)); err != nil {
		return nil, err
	}

	existing := make(map[string]string, len(found))
	for _, f := range found {
		existing[f.ProductID+"\x00"+f.VarID] = f.DataHash
	}
	return existing, nil
}

// Fingerprint hashes the content fields of a row so unchanged products
// can be skipped at upsert time. Field order is fixed; changing it
// invalidates every stored hash.
func Fingerprint(r models.RawRow) string {
	parts := []string{
		nullStr(r.Brand),
		nullStr(r.Discount),
		nullFloat(r.MRP),
		nullStr(r.Name),
		nullFloat(r.OfferPrice),
		nullStr(r.SKU),
		nullFloat(r.StorePrice),
	}
	sum := md5.Sum([]byte(strings.Join(parts, "||")))
	return hex.EncodeToString(sum[:])
}

func nullStr(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
