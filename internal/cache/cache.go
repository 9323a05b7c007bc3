// Package cache stores scraped result sets keyed by a deterministic
// fingerprint of the request. One base entry per (query, country,
// identity) holds the full raw scrape; derived entries hold particular
// filter/sort views computed from it without re-fetching.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/maltedev/retailsearch/internal/models"
)

// ErrNotFound is returned when no entry exists for a fingerprint.
var ErrNotFound = errors.New("cache entry not found")

// GraceWindow extends an explicit expiry slightly so a burst of requests
// right after nominal expiry does not stampede the scrape targets.
const GraceWindow = 60 * time.Second

// DefaultTTL is the nominal lifetime of a cached result set.
const DefaultTTL = 24 * time.Hour

// Kind separates the canonical raw scrape from filtered views of it.
type Kind string

const (
	KindBase    Kind = "base"
	KindDerived Kind = "derived"
)

// FilterSpec is the filter/sort combination a derived entry represents.
type FilterSpec struct {
	Exclude   string           `json:"exclude"`
	SortBy    models.SortOrder `json:"sort_by"`
	MinRating float64          `json:"min_rating,omitempty"`
}

// Entry is one cached result set, base or derived.
type Entry struct {
	Fingerprint     string           `json:"fingerprint"`
	Kind            Kind             `json:"kind"`
	Query           string           `json:"query"`
	Country         models.Country   `json:"country"`
	Identity        string           `json:"identity"`
	Items           []models.Product `json:"items"`
	RawItemCount    int              `json:"raw_item_count"`
	PaginationLinks map[int]string   `json:"pagination_links,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`

	// Derived entries only.
	BaseFingerprint string     `json:"base_fingerprint,omitempty"`
	Filter          FilterSpec `json:"filter,omitempty"`
}

// Fresh reports whether the entry may still be served. An explicit expiry
// is honored with the grace window; entries without one fall back to an
// age check against ttl.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	if !e.ExpiresAt.IsZero() {
		return now.Before(e.ExpiresAt.Add(GraceWindow))
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(e.CreatedAt) < ttl
}

// Fingerprint hashes the five request inputs that identify a result set.
// Identical inputs always resolve to the same entry, which is what makes
// upsert-not-duplicate work.
func Fingerprint(query string, country models.Country, exclude string, sortBy models.SortOrder, identity string) string {
	h := sha256.New()
	for _, part := range []string{query, string(country), exclude, string(sortBy), identity} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BaseFingerprint is the canonical key for "all items, unfiltered":
// empty exclude and empty sort by convention.
func BaseFingerprint(query string, country models.Country, identity string) string {
	return Fingerprint(query, country, "", models.SortNone, identity)
}
