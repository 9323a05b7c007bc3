package models

import (
	"strings"
)

// Platform identifies which marketplace a product was scraped from.
type Platform string

const (
	PlatformAmazon  Platform = "amazon"
	PlatformEbay    Platform = "ebay"
	PlatformBestBuy Platform = "bestbuy"
	PlatformWalmart Platform = "walmart"
)

// ParsePlatform normalizes a platform name, returning false for unknown values.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformAmazon:
		return PlatformAmazon, true
	case PlatformEbay:
		return PlatformEbay, true
	case PlatformBestBuy:
		return PlatformBestBuy, true
	case PlatformWalmart:
		return PlatformWalmart, true
	}
	return "", false
}

// Product is one normalized search listing.
type Product struct {
	Title               string   `json:"title"`
	Link                string   `json:"link"`
	PriceDisplay        string   `json:"price_display"`
	PriceValue          float64  `json:"price_value"`
	PricePerUnitDisplay string   `json:"price_per_unit_display,omitempty"`
	PricePerUnitValue   float64  `json:"price_per_unit_value"`
	Unit                string   `json:"unit,omitempty"`
	ImageURL            string   `json:"image_url"`
	Brand               string   `json:"brand,omitempty"`
	RatingValue         float64  `json:"rating_value"`
	RatingCount         int      `json:"rating_count,omitempty"`
	DeliveryText        string   `json:"delivery_text,omitempty"`
	Platform            Platform `json:"platform"`
	ASIN                string   `json:"asin_or_id,omitempty"`
	ParsingMethod       string   `json:"parsing_method,omitempty"`
}

// HasUnitPrice reports whether the product carries a real per-unit figure
// rather than the total-price fallback.
func (p *Product) HasUnitPrice() bool {
	return p.Unit != ""
}

// Valid reports whether the product meets the minimum bar for the raw
// result set: title, link, image and a positive price.
func (p *Product) Valid() bool {
	return p.Title != "" && p.Link != "" && p.ImageURL != "" && p.PriceValue > 0
}
