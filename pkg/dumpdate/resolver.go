package dumpdate

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cperrin88/wikidumps/pkg/errors"
)

// ListingLocator returns the listing page URL of a language.
type ListingLocator interface {
	ListingURL(language string) (*url.URL, error)
}

// PageGetter downloads a page with a plain GET.
type PageGetter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Resolver finds the latest dump date of a language. It never retries.
type Resolver struct {
	locator ListingLocator
	client  PageGetter
}

// NewResolver creates a Resolver.
func NewResolver(locator ListingLocator, client PageGetter) *Resolver {
	return &Resolver{locator: locator, client: client}
}

// Latest returns the newest dump date listed for language.
// Listing URL template errors are returned unchanged; request failures wrap
// errors.ErrResolution, and a page without dates returns errors.ErrNoDumpFound.
func (r *Resolver) Latest(ctx context.Context, language string) (Date, error) {
	listing, err := r.locator.ListingURL(language)
	if err != nil {
		return Date{}, err
	}
	page, err := r.client.Get(ctx, listing.String())
	if err != nil {
		if ctx.Err() != nil {
			return Date{}, ctx.Err()
		}
		return Date{}, fmt.Errorf("%w: %s: %w", errors.ErrResolution, listing, err)
	}
	latest, ok := Max(ExtractDates(page))
	if !ok {
		return Date{}, fmt.Errorf("%w for %s at %s", errors.ErrNoDumpFound, language, listing)
	}
	return latest, nil
}
