package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/retailsearch/internal/models"
	"github.com/maltedev/retailsearch/internal/priceutil"
)

// Amazon extracts products from amazon.com / amazon.ca search pages.
type Amazon struct {
	asinPattern   *regexp.Regexp
	ratingPattern *regexp.Regexp
	countPattern  *regexp.Regexp
}

func NewAmazon() *Amazon {
	return &Amazon{
		asinPattern:   regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
		ratingPattern: regexp.MustCompile(`^([0-9](?:\.[0-9])?) out of 5`),
		countPattern:  regexp.MustCompile(`([0-9][0-9,]*)`),
	}
}

func (a *Amazon) Platform() models.Platform {
	return models.PlatformAmazon
}

var amazonBlockMarkers = []string{
	"Robot Check",
	"Type the characters you see in this image",
	"To discuss automated access to Amazon data",
	"api-services-support@amazon.com",
}

var amazonValidMarkers = []string{
	"s-main-slot",
	"s-search-result",
	"s-result-list",
}

// Extract parses one Amazon search page. Carousel/sponsored containers
// are unioned onto the primary result set rather than replacing it.
func (a *Amazon) Extract(htmlText string, opts Options) (*Result, error) {
	if containsAny(htmlText, amazonBlockMarkers) {
		return nil, ErrBlockedPage
	}
	if !containsAny(htmlText, amazonValidMarkers) {
		return nil, ErrInvalidPageFormat
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	containers := doc.Find("div[data-component-type='s-search-result']")

	// Sponsored and carousel cards live outside the primary slot; union
	// them in so paid placements still land in the result set.
	for _, selector := range []string{
		"div[data-component-type='sp-sponsored-result']",
		"div.a-carousel-card div[data-asin]",
	} {
		containers = containers.AddSelection(doc.Find(selector))
	}

	dedup := newDedupSet()
	var raw []models.Product

	containers.Each(func(_ int, s *goquery.Selection) {
		product, ok := a.extractProduct(s, opts)
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

	result := &Result{
		Raw:             raw,
		PaginationLinks: extractAmazonPagination(htmlText, opts.Country),
	}
	for _, p := range raw {
		if passesRatingFloor(p, opts.MinRating) {
			result.Items = append(result.Items, p)
		}
	}
	return result, nil
}

var amazonTitleChain = []fieldStrategy{
	{"aria_label", func(s *goquery.Selection) string {
		v, _ := s.Find("h2 a").First().Attr("aria-label")
		return v
	}},
	{"h2_span", func(s *goquery.Selection) string {
		return s.Find("h2 span.a-text-normal").First().Text()
	}},
	{"generic_span", func(s *goquery.Selection) string {
		return s.Find("span.a-size-medium, span.a-size-base-plus").First().Text()
	}},
	{"h2_text", func(s *goquery.Selection) string {
		return s.Find("h2").First().Text()
	}},
	{"anchor_span", func(s *goquery.Selection) string {
		return s.Find("a.a-link-normal span").First().Text()
	}},
}

var amazonLinkChain = []fieldStrategy{
	{"h2_anchor", func(s *goquery.Selection) string {
		v, _ := s.Find("h2 a").First().Attr("href")
		return v
	}},
	{"title_anchor", func(s *goquery.Selection) string {
		v, _ := s.Find("a.a-link-normal.s-link-style").First().Attr("href")
		return v
	}},
	{"any_anchor", func(s *goquery.Selection) string {
		v, _ := s.Find("a.a-link-normal[href*='/dp/']").First().Attr("href")
		return v
	}},
}

var amazonPriceChain = []fieldStrategy{
	{"offscreen", func(s *goquery.Selection) string {
		return s.Find("span.a-price > span.a-offscreen").First().Text()
	}},
	{"whole_fraction", func(s *goquery.Selection) string {
		whole := strings.TrimSpace(s.Find("span.a-price-whole").First().Text())
		if whole == "" {
			return ""
		}
		fraction := strings.TrimSpace(s.Find("span.a-price-fraction").First().Text())
		if fraction == "" {
			return whole
		}
		return whole + "." + fraction
	}},
	{"text_price", func(s *goquery.Selection) string {
		return s.Find("span.a-price.a-text-price span.a-offscreen").First().Text()
	}},
}

var amazonImageChain = []fieldStrategy{
	{"s_image", func(s *goquery.Selection) string {
		v, _ := s.Find("img.s-image").First().Attr("src")
		return v
	}},
	{"any_img", func(s *goquery.Selection) string {
		v, _ := s.Find("img[src]").First().Attr("src")
		return v
	}},
}

var amazonDeliveryChain = []fieldStrategy{
	{"delivery_recipe", func(s *goquery.Selection) string {
		return joinLines(s.Find("div[data-cy='delivery-recipe']"))
	}},
	{"udm_message", func(s *goquery.Selection) string {
		return joinLines(s.Find(".udm-primary-delivery-message"))
	}},
	{"aria_delivery", func(s *goquery.Selection) string {
		v, _ := s.Find("span[aria-label*='delivery'], span[aria-label*='Delivery']").First().Attr("aria-label")
		return v
	}},
}

func (a *Amazon) extractProduct(s *goquery.Selection, opts Options) (models.Product, bool) {
	var p models.Product
	p.Platform = models.PlatformAmazon

	title, titleMethod := firstMatch(s, amazonTitleChain)
	if title == "" {
		return p, false
	}
	p.Title = title
	p.ParsingMethod = "title:" + titleMethod

	link, _ := firstMatch(s, amazonLinkChain)
	if link == "" {
		return p, false
	}
	p.Link = absoluteAmazonURL(link, opts.Country, opts.AffiliateTag)

	if asin, ok := s.Attr("data-asin"); ok && asin != "" {
		p.ASIN = asin
	} else if m := a.asinPattern.FindStringSubmatch(link); m != nil {
		p.ASIN = m[1]
	}

	priceText, _ := firstMatch(s, amazonPriceChain)
	p.PriceDisplay = priceText
	p.PriceValue = priceutil.ParsePrice(priceText)
	if p.PriceValue <= 0 {
		return p, false
	}

	// Unit price hides in the price block's parenthetical; fall back to
	// the whole container text when the price block is missing.
	unitSource := s.Find("div[data-cy='price-recipe']").Text()
	if unitSource == "" {
		unitSource = s.Text()
	}
	if value, unit, ok := priceutil.ExtractUnitPrice(unitSource, p.PriceValue); ok {
		p.PricePerUnitValue = value
		p.Unit = unit
		p.PricePerUnitDisplay = fmt.Sprintf("$%.2f/%s", value, unit)
	} else {
		// No real per-unit figure: carry the total as a sortable proxy.
		p.PricePerUnitValue = p.PriceValue
	}

	p.RatingValue = a.extractRating(s)
	p.RatingCount = a.extractRatingCount(s)
	p.Brand = a.extractBrand(s)
	p.DeliveryText, _ = firstMatch(s, amazonDeliveryChain)

	p.ImageURL, _ = firstMatch(s, amazonImageChain)
	if p.ImageURL == "" {
		return p, false
	}

	return p, true
}

func (a *Amazon) extractRating(s *goquery.Selection) float64 {
	texts := []string{
		s.Find("span.a-icon-alt").First().Text(),
		s.Find("i.a-icon-star-small span").First().Text(),
	}
	if label, ok := s.Find("a[aria-label*='out of 5']").First().Attr("aria-label"); ok {
		texts = append(texts, label)
	}
	for _, t := range texts {
		if m := a.ratingPattern.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
	}
	return 0
}

func (a *Amazon) extractRatingCount(s *goquery.Selection) int {
	texts := []string{
		s.Find("span.a-size-base.s-underline-text").First().Text(),
		s.Find("span[aria-label$='ratings'], span[aria-label$='rating']").First().AttrOr("aria-label", ""),
	}
	for _, t := range texts {
		if m := a.countPattern.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
				return v
			}
		}
	}
	return 0
}

// extractBrand only accepts text nodes that precede the title element in
// document order; delivery and price text always render after the title,
// so the constraint keeps them from being misread as a brand.
func (a *Amazon) extractBrand(s *goquery.Selection) string {
	titleSel := s.Find("h2").First()
	if titleSel.Length() == 0 {
		return ""
	}
	order := documentOrder(s)
	titlePos, ok := order[titleSel.Get(0)]
	if !ok {
		return ""
	}

	candidates := s.Find("h5.s-line-clamp-1 span, span.a-size-base-plus.a-color-base, div[data-cy='title-recipe'] span.a-size-base")
	brand := ""
	candidates.EachWithBreak(func(_ int, c *goquery.Selection) bool {
		pos, ok := order[c.Get(0)]
		if !ok || pos >= titlePos {
			return true
		}
		text := strings.TrimSpace(c.Text())
		if text == "" || len(text) > 60 {
			return true
		}
		brand = text
		return false
	})
	return brand
}

// documentOrder maps every node under the container to its depth-first
// position.
func documentOrder(s *goquery.Selection) map[*html.Node]int {
	order := make(map[*html.Node]int)
	pos := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		order[n] = pos
		pos++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range s.Nodes {
		walk(root)
	}
	return order
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func joinLines(s *goquery.Selection) string {
	var lines []string
	s.Each(func(_ int, sel *goquery.Selection) {
		for _, line := range strings.Split(sel.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	})
	return strings.Join(lines, "\n")
}
