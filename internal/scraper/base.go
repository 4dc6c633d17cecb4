// Define the contract a marketplace crawler offers the pipeline.

package scraper

import (
	"context"

	"go-crowdworks-watcher/internal/models"
)

// Session is one authenticated browsing session against a marketplace.
// Implementations never return item-level errors: failures are logged and
// degrade to an empty or partial result.
type Session interface {
	// Login reports whether the session is authenticated.
	Login(ctx context.Context) bool

	// Listings extracts every listing on the newest-first search page.
	Listings(ctx context.Context) []models.Listing

	// Detail fetches the long description; the zero Detail on failure.
	Detail(ctx context.Context, url string) models.Detail

	Close() error
}
