package fetcher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Subtrees worth keeping when bandwidth optimization is on: the product
// listing containers and the pagination strip, per marketplace. Anything
// the extractors read must live under one of these.
var listingSelectors = []string{
	"div.s-main-slot",          // amazon result list
	"span[data-component-type='s-searchgrid-carousel']",  // amazon carousel block
	"div[data-component-type='sp-sponsored-result']",     // amazon sponsored card
	"div.a-carousel-card",      // amazon carousel card outside the grid
	"span.s-pagination-strip",  // amazon pagination
	"ul.srp-results",           // ebay result list
	"nav.pagination",           // ebay pagination
}

// TrimListing reduces a fetched page to its product-listing and
// pagination subtrees. When no known container is present the original
// HTML is returned untouched, so trimming never costs the extractor data.
func TrimListing(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return page
	}

	// Containers can nest (a sponsored card inside the main slot); keep
	// only the outermost match so no subtree is emitted twice.
	keptNodes := make(map[*html.Node]bool)
	var kept []string
	for _, selector := range listingSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			for parent := node.Parent; parent != nil; parent = parent.Parent {
				if keptNodes[parent] {
					return
				}
			}
			if out, err := goquery.OuterHtml(s); err == nil {
				keptNodes[node] = true
				kept = append(kept, out)
			}
		})
	}
	if len(kept) == 0 {
		return page
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, fragment := range kept {
		b.WriteString(fragment)
	}
	b.WriteString("</body></html>")
	return b.String()
}
