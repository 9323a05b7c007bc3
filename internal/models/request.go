package models

import (
	"strings"
)

// MaxPage is the deepest result page a caller may request.
const MaxPage = 3

// SortOrder names the supported result orderings.
type SortOrder string

const (
	SortNone         SortOrder = ""
	SortPrice        SortOrder = "price"
	SortPricePerUnit SortOrder = "price_per_unit"
	SortRating       SortOrder = "rating"
	SortTitle        SortOrder = "title"
)

// Country is a supported marketplace region.
type Country string

const (
	CountryUS Country = "us"
	CountryCA Country = "ca"
)

// ParseCountry normalizes a country code, defaulting to us.
func ParseCountry(s string) Country {
	if strings.EqualFold(strings.TrimSpace(s), string(CountryCA)) {
		return CountryCA
	}
	return CountryUS
}

// SearchRequest is an inbound search, filter or load-more request.
type SearchRequest struct {
	Query        string     `json:"query"`
	ExcludeTerms string     `json:"exclude"`
	SortBy       SortOrder  `json:"sort_by"`
	Country      Country    `json:"country"`
	MinRating    float64    `json:"min_rating"`
	Page         int        `json:"page"`
	Platforms    []Platform `json:"platforms"`
	Identity     string     `json:"identity"`
}

// SearchResponse is the shaped result handed back to the caller.
type SearchResponse struct {
	Success          bool                `json:"success"`
	Items            []Product           `json:"items"`
	Count            int                 `json:"count"`
	BaseItemsCount   int                 `json:"base_items_count"`
	PaginationLinks  map[int]string      `json:"pagination_links,omitempty"`
	Message          string              `json:"message,omitempty"`
	PlatformErrors   map[Platform]string `json:"platform_errors,omitempty"`
	ManualSearchURLs map[Platform]string `json:"manual_search_urls,omitempty"`
}
