package crowdworks

import (
	"context"
	"errors"
	"strings"

	"go-crowdworks-watcher/internal/browser"
	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var ErrDetailNotFound = errors.New("detail table not found")

// Detail opens a listing page and returns its detail text. Any failure is
// logged and yields the zero Detail so the listing still reaches the output.
func (c *Crawler) Detail(ctx context.Context, listingURL string) models.Detail {
	sleep(ctx, browser.RandomDuration(0, c.opts.Delays.DetailJitter))
	if ctx.Err() != nil {
		return models.Detail{}
	}
	c.log.Info("🔎 Fetching detail", zap.String("url", listingURL))

	if err := c.page.Goto(listingURL); err != nil {
		c.log.Error("❌ Failed to open detail page", zap.String("url", listingURL), zap.Error(err))
		return models.Detail{}
	}
	if err := c.page.WaitForLoad(c.opts.Delays.DetailSettle); err != nil {
		c.log.Warn("⚠️ Detail page did not report load", zap.String("url", listingURL), zap.Error(err))
	}

	page, err := c.page.Content()
	if err != nil {
		c.log.Error("❌ Failed to read detail page", zap.String("url", listingURL), zap.Error(err))
		return models.Detail{}
	}

	text, err := ParseDetail(page, c.opts.Schema.Detail)
	if err != nil {
		c.log.Warn("⚠️ No detail found", zap.String("url", listingURL), zap.Error(err))
		return models.Detail{}
	}
	return models.Detail{
		Description: text,
		CrawledAt:   models.FormatTimestamp(c.now()),
	}
}

// ParseDetail returns the non-blank text nodes of the detail table, trimmed
// and joined by newlines. Failures are DETAIL domain errors.
func ParseDetail(page string, schema DetailSchema) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", domainerrors.Detail("failed to parse detail page", err)
	}
	table := doc.Find(schema.Table).First()
	if table.Length() == 0 {
		return "", domainerrors.Detail(schema.Table+" not on page", ErrDetailNotFound)
	}

	var lines []string
	for _, n := range table.Nodes {
		lines = collectText(n, lines)
	}
	if len(lines) == 0 {
		return "", domainerrors.Detail(schema.Table+" is empty", ErrDetailNotFound)
	}
	return strings.Join(lines, "\n"), nil
}

func collectText(n *html.Node, lines []string) []string {
	switch n.Type {
	case html.TextNode:
		if text := cleanText(n.Data); text != "" {
			lines = append(lines, text)
		}
		return lines
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return lines
		}
	case html.CommentNode:
		return lines
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		lines = collectText(child, lines)
	}
	return lines
}
