package crowdworks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Listings opens the newest-first search page and parses every listing card
// on it. A card that fails to parse is logged and skipped. Page-level failures
// yield an empty result.
func (c *Crawler) Listings(ctx context.Context) []models.Listing {
	started := c.now()
	target := c.url(c.opts.Schema.Search.Path)
	c.log.Info("📋 Fetching listings", zap.String("url", target))

	if err := c.page.Goto(target); err != nil {
		c.log.Error("❌ Failed to open search page", zap.String("url", target), zap.Error(err))
		return nil
	}
	if err := c.page.WaitForLoad(c.opts.Delays.SearchSettle); err != nil {
		c.log.Warn("⚠️ Search page did not report load", zap.Error(err))
	}

	html, err := c.page.Content()
	if err != nil {
		c.log.Error("❌ Failed to read search page", zap.Error(err))
		return nil
	}

	listings, errs := ParseListings(html, c.opts.BaseURL, c.opts.Schema.Search, started)
	for _, err := range errs {
		c.log.Error("⚠️ Skipped listing card", zap.Error(err))
	}
	for _, l := range listings {
		c.log.Debug("📦 Listing parsed", zap.String("title", l.Title), zap.String("url", l.URL))
	}
	c.log.Info("📦 Listings fetched", zap.Int("count", len(listings)), zap.Int("skipped", len(errs)))
	return listings
}

// ParseListings extracts listings from search-results markup in document
// order. crawledAt is stamped on every listing. When the page repeats a URL,
// the later card's fields replace the earlier one in place.
func ParseListings(html, baseURL string, schema SearchSchema, crawledAt time.Time) ([]models.Listing, []error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []error{domainerrors.Extraction("failed to parse search page", err)}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, []error{domainerrors.Extraction("invalid base url", err)}
	}

	stamp := models.FormatTimestamp(crawledAt)
	var (
		listings []models.Listing
		errs     []error
		position = map[string]int{}
	)

	doc.Find(schema.Block).Each(func(i int, card *goquery.Selection) {
		listing, err := parseCard(card, base, schema)
		if err != nil {
			errs = append(errs, domainerrors.Extraction(fmt.Sprintf("card %d", i), err))
			return
		}
		listing.CrawledAt = stamp

		if idx, seen := position[listing.URL]; seen {
			listings[idx] = listing
			return
		}
		position[listing.URL] = len(listings)
		listings = append(listings, listing)
	})

	return listings, errs
}

func parseCard(card *goquery.Selection, base *url.URL, schema SearchSchema) (models.Listing, error) {
	link := card.Find(schema.TitleLink).First()
	if link.Length() == 0 {
		return models.Listing{}, errors.New("title link not found")
	}
	title := cleanText(link.Text())
	if title == "" {
		return models.Listing{}, errors.New("empty title")
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return models.Listing{}, fmt.Errorf("no href on %q", title)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return models.Listing{}, fmt.Errorf("bad href on %q: %w", title, err)
	}

	listing := models.Listing{
		Title:  title,
		URL:    base.ResolveReference(ref).String(),
		Budget: textOr(card.Find(schema.Budget).First(), models.BudgetUnset),
		Client: textOr(card.Find(schema.Client).First(), models.ClientUndisclosed),
	}

	if ts := card.Find(schema.PostedAt).First(); ts.Length() > 0 {
		if v, ok := ts.Attr(schema.PostedAtAttr); ok && strings.TrimSpace(v) != "" {
			listing.PostedDate = models.StringPtr(strings.TrimSpace(v))
		}
	}
	return listing, nil
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	if text := cleanText(sel.Text()); text != "" {
		return text
	}
	return fallback
}
