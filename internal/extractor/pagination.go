package extractor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/retailsearch/internal/models"
)

// Pagination anchors are reliably present as literal substrings even when
// the surrounding DOM shifts, so extraction is regex-over-raw-HTML rather
// than DOM-based. Patterns are tried in order; the first one that yields
// matches wins. Each captured URL is truncated right after the page
// number so the same page always maps to the same cache-friendly URL.
var amazonPaginationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`href="(/s\?[^"]*?page=([23]))`),
	regexp.MustCompile(`class="[^"]*s-pagination-button[^"]*"[^>]*href="([^"]*?page=([23]))`),
	regexp.MustCompile(`href="([^"]*?[?&](?:amp;)?page=([23]))`),
}

func extractAmazonPagination(htmlText string, country models.Country) map[int]string {
	for _, pattern := range amazonPaginationPatterns {
		matches := pattern.FindAllStringSubmatch(htmlText, -1)
		if len(matches) == 0 {
			continue
		}
		links := make(map[int]string)
		for _, m := range matches {
			page, err := strconv.Atoi(m[2])
			if err != nil || page < 2 || page > models.MaxPage {
				continue
			}
			if _, exists := links[page]; exists {
				continue
			}
			links[page] = normalizeAmazonPageURL(m[1], country)
		}
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

func normalizeAmazonPageURL(raw string, country models.Country) string {
	raw = strings.ReplaceAll(raw, "&amp;", "&")
	domain := amazonDomain(country)
	if strings.HasPrefix(raw, "/") {
		return "https://" + domain + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = "https"
	u.Host = domain
	return u.String()
}

func amazonDomain(country models.Country) string {
	if country == models.CountryCA {
		return "www.amazon.ca"
	}
	return "www.amazon.com"
}

// absoluteAmazonURL resolves a result link against the country domain,
// drops tracking query noise, and attaches the affiliate tag.
func absoluteAmazonURL(href string, country models.Country, affiliateTag string) string {
	href = strings.ReplaceAll(href, "&amp;", "&")
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.Host == "" {
		u.Scheme = "https"
		u.Host = amazonDomain(country)
	}
	q := url.Values{}
	if affiliateTag != "" {
		q.Set("tag", affiliateTag)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}
