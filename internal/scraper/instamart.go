// Package scraper collects product listings from the Instamart
// storefront. It drives a headless browser session so the listing API
// sees first-party cookies, discovers the filter tiles from the rendered
// category page, and pages through the listing endpoints from inside the
// page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"instamart-bot/internal/models"
	"instamart-bot/internal/util"
)

const (
	listingEndpoint = "/api/instamart/category-listing"
	filterEndpoint  = "/api/instamart/category-listing/filter"

	listingPageStep = 20
	filterPageLimit = 40

	tileSelector  = `li[data-itemid]`
	cardSelector  = `div[data-testid="product-card"]`
	requestGap    = 800 * time.Millisecond
	tileGap       = 4 * time.Second
	parentTimeout = 15 * time.Minute

	// The storefront serves the tile grid only to mobile clients.
	mobileUA = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Mobile Safari/537.36"
)

type Client struct {
	categoryURLs []string
	limiter      *rate.Limiter
}

func New(categoryURLs []string) *Client {
	return &Client{
		categoryURLs: categoryURLs,
		limiter:      rate.NewLimiter(rate.Every(requestGap), 1),
	}
}

type tile struct {
	FilterID string
	Name     string
}

type listingParams struct {
	CategoryName string
	StoreID      string
	Primary      string
	Secondary    string
	Taxonomy     string
}

// ScrapeAll runs one full pass over the configured parent category pages
// and returns deduplicated product rows. A failing parent is logged and
// skipped; the pass only fails when the browser cannot start at all.
func (c *Client) ScrapeAll(ctx context.Context) ([]models.RawRow, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(mobileUA),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	var mu sync.Mutex
	var all []models.RawRow

	g, gctx := errgroup.WithContext(allocCtx)
	g.SetLimit(2)
	for _, parent := range c.categoryURLs {
		parent := parent
		g.Go(func() error {
			rows, err := c.scrapeParent(gctx, parent)
			if err != nil {
				slog.Warn("Parent category scrape failed", "url", parent, "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, rows...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unique := dedupeRows(all)
	slog.Info("Scrape pass finished", "rows", len(all), "unique", len(unique))
	return unique, nil
}

func (c *Client) scrapeParent(ctx context.Context, parentURL string) ([]models.RawRow, error) {
	params, err := parseListingParams(parentURL)
	if err != nil {
		return nil, err
	}

	pctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	pctx, cancelTimeout := context.WithTimeout(pctx, parentTimeout)
	defer cancelTimeout()

	if err := chromedp.Run(pctx,
		chromedp.EmulateViewport(375, 667, chromedp.EmulateScale(1)),
		chromedp.Navigate(parentURL),
	); err != nil {
		return nil, fmt.Errorf("failed to open category page: %w", err)
	}

	if err := c.waitForTiles(pctx); err != nil {
		slog.Warn("Tile grid not visible, continuing with parent listing only", "url", parentURL, "error", err)
	}
	tiles := c.discoverTiles(pctx)
	slog.Info("Tiles discovered", "category", params.CategoryName, "count", len(tiles))

	var rows []models.RawRow
	parentRows, err := c.fetchListingAll(pctx, params, "parent", "Parent")
	if err != nil {
		slog.Warn("Parent listing fetch incomplete", "category", params.CategoryName, "error", err)
	}
	rows = append(rows, parentRows...)

	for i, t := range tiles {
		tileRows := c.scrapeTile(pctx, params, t)
		rows = append(rows, tileRows...)
		slog.Info("Tile scraped", "tile", t.Name, "index", i+1, "tiles", len(tiles), "rows", len(tileRows))

		select {
		case <-pctx.Done():
			return rows, pctx.Err()
		case <-time.After(tileGap):
		}
	}
	return rows, nil
}

// waitForTiles waits for the tile grid, nudging the page with scrolls
// when the grid renders lazily.
func (c *Client) waitForTiles(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(tileSelector, chromedp.ByQuery))
	cancel()
	if err == nil {
		return nil
	}

	for i := 0; i < 5; i++ {
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 0.5)`, nil),
			chromedp.Sleep(250*time.Millisecond),
		); err != nil {
			return err
		}
	}
	waitCtx, cancel = context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(tileSelector, chromedp.ByQuery))
}

// discoverTiles reads the rendered grid and extracts one (filterID,
// label) pair per tile. The label is the last non-empty text line of the
// tile node.
func (c *Client) discoverTiles(ctx context.Context) []tile {
	var body string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("body", &body, chromedp.ByQuery)); err != nil {
		slog.Warn("Failed to read page HTML for tile discovery", "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		slog.Warn("Failed to parse page HTML", "error", err)
		return nil
	}

	var tiles []tile
	doc.Find(tileSelector).Each(func(_ int, s *goquery.Selection) {
		filterID, ok := s.Attr("data-itemid")
		if !ok || filterID == "" {
			return
		}
		name := ""
		for _, line := range strings.Split(s.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				name = line
			}
		}
		if name == "" {
			return
		}
		tiles = append(tiles, tile{FilterID: filterID, Name: name})
	})
	return tiles
}

// scrapeTile clicks into one tile and pages through its products,
// preferring the POST filter endpoint and falling back to GET listing
// calls, last with the tile label as the category name.
func (c *Client) scrapeTile(ctx context.Context, parent listingParams, t tile) []models.RawRow {
	params := parent
	sel := fmt.Sprintf(`li[data-itemid=%q]`, t.FilterID)

	clickCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	err := chromedp.Run(clickCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	)
	cancel()
	if err != nil {
		slog.Warn("Failed to open tile", "tile", t.Name, "error", err)
		return nil
	}

	// The click navigates; give the product grid a moment and pick up the
	// tile's own query context from the new location.
	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	_ = chromedp.Run(waitCtx, chromedp.WaitVisible(cardSelector, chromedp.ByQuery))
	cancelWait()

	var location string
	if err := chromedp.Run(ctx, chromedp.Location(&location)); err == nil {
		if tileParams, err := parseListingParams(location); err == nil {
			params.CategoryName = orDefault(tileParams.CategoryName, parent.CategoryName)
			params.Primary = orDefault(tileParams.Primary, parent.Primary)
			params.Secondary = orDefault(tileParams.Secondary, parent.Secondary)
			params.Taxonomy = orDefault(tileParams.Taxonomy, parent.Taxonomy)
		}
	}

	rows, err := c.fetchFilterAll(ctx, params, t)
	if err != nil {
		slog.Warn("Tile POST fetch failed", "tile", t.Name, "error", err)
	}
	if len(rows) == 0 {
		rows, err = c.fetchListingAllWithTile(ctx, params, t.FilterID, t.Name)
		if err != nil {
			slog.Warn("Tile GET fetch failed", "tile", t.Name, "error", err)
		}
	}
	if len(rows) == 0 {
		labelParams := params
		labelParams.CategoryName = t.Name
		rows, err = c.fetchListingAllWithTile(ctx, labelParams, t.FilterID, t.Name)
		if err != nil {
			slog.Warn("Tile GET fetch by label failed", "tile", t.Name, "error", err)
		}
	}
	return rows
}

func (c *Client) fetchListingAll(ctx context.Context, params listingParams, tileID, tileName string) ([]models.RawRow, error) {
	return c.fetchListingAllWithTile(ctx, params, tileID, tileName)
}

func (c *Client) fetchListingAllWithTile(ctx context.Context, params listingParams, tileID, tileName string) ([]models.RawRow, error) {
	var out []models.RawRow
	for offset := 0; ; offset += listingPageStep {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		q := url.Values{}
		q.Set("categoryName", params.CategoryName)
		q.Set("storeId", params.StoreID)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("filterName", "")
		q.Set("primaryStoreId", params.Primary)
		q.Set("taxonomyType", params.Taxonomy)
		if params.Secondary != "" {
			q.Set("secondaryStoreId", params.Secondary)
		}

		payload, err := c.evalFetch(ctx, listingEndpoint+"?"+q.Encode(), "GET")
		if err != nil {
			return out, fmt.Errorf("listing fetch failed at offset %d: %w", offset, err)
		}

		items := parseItems(payload)
		if len(items) == 0 {
			return out, nil
		}
		for _, it := range items {
			out = append(out, explodeItem(it, tileID, tileName, params.CategoryName)...)
		}
		if more, known := hasMore(payload); known && !more {
			return out, nil
		}
	}
}

func (c *Client) fetchFilterAll(ctx context.Context, params listingParams, t tile) ([]models.RawRow, error) {
	var out []models.RawRow
	for pageNo := 0; ; pageNo++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		q := url.Values{}
		q.Set("filterId", t.FilterID)
		q.Set("storeId", params.StoreID)
		q.Set("offset", "0")
		q.Set("primaryStoreId", params.Primary)
		q.Set("type", params.Taxonomy)
		q.Set("pageNo", strconv.Itoa(pageNo))
		q.Set("limit", strconv.Itoa(filterPageLimit))
		q.Set("filterName", "")
		q.Set("categoryName", params.CategoryName)
		if params.Secondary != "" {
			q.Set("secondaryStoreId", params.Secondary)
		}

		payload, err := c.evalFetch(ctx, filterEndpoint+"?"+q.Encode(), "POST")
		if err != nil {
			return out, fmt.Errorf("filter fetch failed at page %d: %w", pageNo, err)
		}

		items := parseItems(payload)
		if len(items) == 0 {
			return out, nil
		}
		for _, it := range items {
			out = append(out, explodeItem(it, t.FilterID, t.Name, params.CategoryName)...)
		}
		if more, known := hasMore(payload); known && !more {
			return out, nil
		}
	}
}

// evalFetch runs a same-origin fetch inside the page so the request
// carries the session the browser established, and decodes the JSON
// response. Transient failures are retried with backoff.
func (c *Client) evalFetch(ctx context.Context, rawURL, method string) (map[string]any, error) {
	body := ""
	if method == "POST" {
		body = ", body: '{}'"
	}
	js := fmt.Sprintf(`fetch(%q, {
		method: %q,
		credentials: 'same-origin',
		headers: {'Accept': 'application/json', 'Content-Type': 'application/json'}%s
	}).then(r => r.json())`, rawURL, method, body)

	var payload map[string]any
	err := util.RetryWithBackoff(ctx, 2, func(attempt int) error {
		evalCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return chromedp.Run(evalCtx, chromedp.Evaluate(js, &payload,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}))
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func parseListingParams(rawURL string) (listingParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return listingParams{}, fmt.Errorf("failed to parse category URL %s: %w", rawURL, err)
	}
	q := u.Query()

	// url.Values already decodes '+' to spaces in categoryName and
	// taxonomyType.
	storeID := q.Get("storeId")
	params := listingParams{
		CategoryName: q.Get("categoryName"),
		StoreID:      storeID,
		Primary:      orDefault(q.Get("primaryStoreId"), storeID),
		Secondary:    q.Get("secondaryStoreId"),
		Taxonomy:     orDefault(q.Get("taxonomyType"), "Speciality taxonomy 1"),
	}
	return params, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
