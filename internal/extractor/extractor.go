// Package extractor turns raw marketplace search pages into normalized
// product records. Marketplace markup is unstable and inconsistently
// classed, so every field is extracted through an ordered chain of
// fallback strategies; which strategy succeeded is recorded per item for
// diagnostics.
package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/retailsearch/internal/models"
)

var (
	// ErrInvalidPageFormat means the markup did not look like a results
	// page at all. Surfaced distinctly so operators can spot layout drift.
	ErrInvalidPageFormat = errors.New("page did not match expected results structure")

	// ErrBlockedPage means the page body is a robot-check interstitial.
	// Distinct from a fetch-level block: it is not retryable here.
	ErrBlockedPage = errors.New("page is a robot-check interstitial")

	// ErrEmptyExtraction means the page was structurally valid but no
	// product matched any selector.
	ErrEmptyExtraction = errors.New("no products matched any selector")
)

// CapabilityError reports an operation a platform does not support.
type CapabilityError struct {
	Platform models.Platform
	Op       string
}

func (e CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Platform, e.Op)
}

// Options carries the per-request knobs every extractor receives.
type Options struct {
	AffiliateTag string
	MinRating    float64
	Country      models.Country
}

// Result is one extraction run. Raw holds every structurally valid item
// (the base-cache candidate); Items additionally applies the MinRating
// threshold, keeping unrated items (absence of a rating is not evidence
// of low quality).
type Result struct {
	Items           []models.Product
	Raw             []models.Product
	PaginationLinks map[int]string
}

// Extractor parses one marketplace's search-result markup.
type Extractor interface {
	Extract(html string, opts Options) (*Result, error)
	Platform() models.Platform
}

// ForPlatform returns the extractor for a marketplace. Every platform in
// the enum is covered; Best Buy and Walmart are registered stubs.
func ForPlatform(p models.Platform) (Extractor, error) {
	switch p {
	case models.PlatformAmazon:
		return NewAmazon(), nil
	case models.PlatformEbay:
		return NewEbay(), nil
	case models.PlatformBestBuy, models.PlatformWalmart:
		return newStub(p), nil
	}
	return nil, fmt.Errorf("unknown platform %q", p)
}

// SupportsSearch reports whether a platform has a working extractor.
func SupportsSearch(p models.Platform) bool {
	return p == models.PlatformAmazon || p == models.PlatformEbay
}

// SupportsLoadMore reports whether a platform can serve pages beyond the
// first: Amazon through stored pagination links, eBay through direct
// page-numbered requests.
func SupportsLoadMore(p models.Platform) bool {
	return p == models.PlatformAmazon || p == models.PlatformEbay
}

// Merge appends incoming items onto existing, dropping any whose
// normalized link or marketplace ID already appears. Used when a
// load-more page is folded into a cached base set.
func Merge(existing, incoming []models.Product) []models.Product {
	dedup := newDedupSet()
	for _, p := range existing {
		dedup.seen(normalizeLink(p.Link), p.ASIN)
	}
	merged := existing
	for _, p := range incoming {
		if dedup.seen(normalizeLink(p.Link), p.ASIN) {
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// fieldStrategy is one step of an ordered fallback chain: a pure lookup
// against a product container that either yields the field or defers to
// the next strategy.
type fieldStrategy struct {
	name string
	fn   func(s *goquery.Selection) string
}

// firstMatch runs strategies in order and returns the first non-empty
// value together with the winning strategy's name.
func firstMatch(s *goquery.Selection, strategies []fieldStrategy) (string, string) {
	for _, strat := range strategies {
		if v := strings.TrimSpace(strat.fn(s)); v != "" {
			return v, strat.name
		}
	}
	return "", ""
}

// dedupSet tracks normalized links and marketplace IDs across one run.
type dedupSet struct {
	links map[string]bool
	ids   map[string]bool
}

func newDedupSet() *dedupSet {
	return &dedupSet{links: make(map[string]bool), ids: make(map[string]bool)}
}

// seen records the item and reports whether either key was already
// present. A match on link OR id drops the item.
func (d *dedupSet) seen(normalizedLink, id string) bool {
	dup := false
	if normalizedLink != "" {
		if d.links[normalizedLink] {
			dup = true
		}
		d.links[normalizedLink] = true
	}
	if id != "" {
		if d.ids[id] {
			dup = true
		}
		d.ids[id] = true
	}
	return dup
}

// normalizeLink strips the query string except an affiliate tag so that
// tracking noise does not defeat deduplication.
func normalizeLink(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	kept := url.Values{}
	if tag := q.Get("tag"); tag != "" {
		kept.Set("tag", tag)
	}
	u.RawQuery = kept.Encode()
	u.Fragment = ""
	return u.String()
}

// passesRatingFloor applies the extraction-time display threshold:
// unrated items always pass, rated items must meet the floor.
func passesRatingFloor(p models.Product, minRating float64) bool {
	if minRating <= 0 || p.RatingValue == 0 {
		return true
	}
	return p.RatingValue >= minRating
}
