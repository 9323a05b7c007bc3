package search

import (
	"fmt"
	"net/url"

	"github.com/maltedev/retailsearch/internal/models"
)

func tld(country models.Country) string {
	if country == models.CountryCA {
		return "ca"
	}
	return "com"
}

// searchURL builds the fetch target for a platform page. The formats are
// load-bearing: cached pagination links and region handling depend on
// them staying exactly like this.
func searchURL(platform models.Platform, country models.Country, query string, page int) string {
	q := url.QueryEscape(query)
	switch platform {
	case models.PlatformAmazon:
		return fmt.Sprintf("https://www.amazon.%s/s?k=%s&page=%d", tld(country), q, page)
	case models.PlatformEbay:
		return fmt.Sprintf("https://www.ebay.%s/sch/i.html?_nkw=%s&_sacat=0&_sop=15&_pgn=%d", tld(country), q, page)
	}
	return ""
}

// manualSearchURL is the user-actionable fallback link included in error
// responses so the caller can hand the search off to the marketplace.
func manualSearchURL(platform models.Platform, country models.Country, query string) string {
	q := url.QueryEscape(query)
	switch platform {
	case models.PlatformAmazon:
		return fmt.Sprintf("https://www.amazon.%s/s?k=%s", tld(country), q)
	case models.PlatformEbay:
		return fmt.Sprintf("https://www.ebay.%s/sch/i.html?_nkw=%s", tld(country), q)
	case models.PlatformBestBuy:
		return fmt.Sprintf("https://www.bestbuy.%s/site/searchpage.jsp?st=%s", tld(country), q)
	case models.PlatformWalmart:
		return fmt.Sprintf("https://www.walmart.%s/search?q=%s", tld(country), q)
	}
	return ""
}
