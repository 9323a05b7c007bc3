package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/retailsearch/internal/models"
	"github.com/maltedev/retailsearch/internal/priceutil"
)

// Ebay extracts products from ebay.com / ebay.ca search pages. Ratings
// here are seller-based, so unrated items are the norm and no
// rating-derived rejection is applied to the raw set.
type Ebay struct {
	itemIDPattern *regexp.Regexp
	ratingPattern *regexp.Regexp
	countPattern  *regexp.Regexp
}

func NewEbay() *Ebay {
	return &Ebay{
		itemIDPattern: regexp.MustCompile(`/itm/(\d+)`),
		ratingPattern: regexp.MustCompile(`([0-9](?:\.[0-9])?) out of 5`),
		countPattern:  regexp.MustCompile(`([0-9][0-9,]*)\s+product ratings`),
	}
}

func (e *Ebay) Platform() models.Platform {
	return models.PlatformEbay
}

var ebayBlockMarkers = []string{
	"Pardon Our Interruption",
	"Please verify yourself to continue",
	"Checking your browser",
}

var ebayValidMarkers = []string{
	"srp-results",
	"s-item",
	"srp-river-results",
}

func (e *Ebay) Extract(htmlText string, opts Options) (*Result, error) {
	if containsAny(htmlText, ebayBlockMarkers) {
		return nil, ErrBlockedPage
	}
	if !containsAny(htmlText, ebayValidMarkers) {
		return nil, ErrInvalidPageFormat
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// Primary list first, bare item cards second; first non-empty set wins.
	containers := doc.Find("ul.srp-results li.s-item")
	if containers.Length() == 0 {
		containers = doc.Find("li.s-item, div.s-item")
	}

	dedup := newDedupSet()
	var raw []models.Product

	containers.Each(func(_ int, s *goquery.Selection) {
		product, ok := e.extractProduct(s, opts)
		if !ok {
			return
		}
		if dedup.seen(normalizeLink(product.Link), product.ASIN) {
			return
		}
		raw = append(raw, product)
	})

	if len(raw) == 0 {
		return nil, ErrEmptyExtraction
	}

	result := &Result{Raw: raw}
	for _, p := range raw {
		if passesRatingFloor(p, opts.MinRating) {
			result.Items = append(result.Items, p)
		}
	}
	return result, nil
}

var ebayTitleChain = []fieldStrategy{
	{"heading_span", func(s *goquery.Selection) string {
		return s.Find(".s-item__title span[role='heading']").First().Text()
	}},
	{"title_div", func(s *goquery.Selection) string {
		return s.Find("div.s-item__title, h3.s-item__title").First().Text()
	}},
	{"image_alt", func(s *goquery.Selection) string {
		v, _ := s.Find(".s-item__image-wrapper img").First().Attr("alt")
		return v
	}},
}

var ebayImageChain = []fieldStrategy{
	{"image_img", func(s *goquery.Selection) string {
		v, _ := s.Find("img.s-item__image-img").First().Attr("src")
		return v
	}},
	{"wrapper_img", func(s *goquery.Selection) string {
		v, _ := s.Find(".s-item__image-wrapper img").First().Attr("src")
		return v
	}},
}

var ebayDeliveryChain = []fieldStrategy{
	{"shipping", func(s *goquery.Selection) string {
		return joinLines(s.Find(".s-item__shipping, .s-item__logisticsCost"))
	}},
	{"delivery_options", func(s *goquery.Selection) string {
		return joinLines(s.Find(".s-item__deliveryOptions, .s-item__dynamic"))
	}},
}

func (e *Ebay) extractProduct(s *goquery.Selection, opts Options) (models.Product, bool) {
	var p models.Product
	p.Platform = models.PlatformEbay

	title, titleMethod := firstMatch(s, ebayTitleChain)
	if title == "" || strings.EqualFold(title, "Shop on eBay") {
		// "Shop on eBay" is a promo placeholder card, not a listing.
		return p, false
	}
	p.Title = title
	p.ParsingMethod = "title:" + titleMethod

	href, _ := s.Find("a.s-item__link").First().Attr("href")
	if href == "" {
		return p, false
	}
	p.Link = normalizeLink(href)
	if m := e.itemIDPattern.FindStringSubmatch(href); m != nil {
		p.ASIN = m[1]
	}

	priceText := strings.TrimSpace(s.Find("span.s-item__price").First().Text())
	// Price ranges ("$5.99 to $12.99") collapse to the lower bound.
	if idx := strings.Index(strings.ToLower(priceText), " to "); idx > 0 {
		priceText = priceText[:idx]
	}
	p.PriceDisplay = priceText
	p.PriceValue = priceutil.ParsePrice(priceText)
	if p.PriceValue <= 0 {
		return p, false
	}

	if value, unit, ok := priceutil.ExtractUnitPrice(s.Text(), p.PriceValue); ok {
		p.PricePerUnitValue = value
		p.Unit = unit
		p.PricePerUnitDisplay = fmt.Sprintf("$%.2f/%s", value, unit)
	} else {
		p.PricePerUnitValue = p.PriceValue
	}

	p.RatingValue = e.extractRating(s)
	p.RatingCount = e.extractRatingCount(s)
	p.Brand = strings.TrimSpace(s.Find(".s-item__subtitle .SECONDARY_INFO").First().Text())
	p.DeliveryText, _ = firstMatch(s, ebayDeliveryChain)

	p.ImageURL, _ = firstMatch(s, ebayImageChain)
	if p.ImageURL == "" {
		return p, false
	}

	return p, true
}

func (e *Ebay) extractRating(s *goquery.Selection) float64 {
	texts := []string{
		s.Find(".x-star-rating .clipped").First().Text(),
		s.Find(".s-item__reviews .clipped").First().Text(),
	}
	for _, t := range texts {
		if m := e.ratingPattern.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
	}
	return 0
}

func (e *Ebay) extractRatingCount(s *goquery.Selection) int {
	text := s.Find(".s-item__reviews-count span").First().Text()
	if m := e.countPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return v
		}
	}
	return 0
}
