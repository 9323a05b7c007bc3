// Package filter applies include/exclude term filters, rating floors and
// sort orders to an in-memory item list. It never touches the network or
// the cache, which is what lets derived views be recomputed for free.
package filter

import (
	"sort"
	"strings"

	"github.com/maltedev/retailsearch/internal/models"
)

// Wildcard is the include token that means "no include filtering".
const Wildcard = "*"

// Apply filters and sorts items. Exclude is disjunctive (any matching
// term disqualifies); include is conjunctive (every term must appear).
// The asymmetry is deliberate: one bad word rules an item out, but an
// item must satisfy the whole include query to be ruled in.
func Apply(items []models.Product, include, exclude string, sortBy models.SortOrder, minRating float64) []models.Product {
	excludeTerms := splitTerms(exclude)
	includeTerms := splitTerms(include)
	if include == Wildcard {
		includeTerms = nil
	}

	out := make([]models.Product, 0, len(items))
	for _, item := range items {
		title := strings.ToLower(item.Title)
		if matchesAny(title, excludeTerms) {
			continue
		}
		if len(includeTerms) > 0 && !matchesAll(title, includeTerms) {
			continue
		}
		// An explicit user-requested rating floor does not admit unrated
		// items; the opposite of the extraction-time policy.
		if minRating > 0 && item.RatingValue < minRating {
			continue
		}
		out = append(out, item)
	}

	sortItems(out, sortBy)
	return out
}

func splitTerms(s string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(s)) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func matchesAny(title string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

func matchesAll(title string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(title, t) {
			return false
		}
	}
	return true
}

func sortItems(items []models.Product, sortBy models.SortOrder) {
	switch sortBy {
	case models.SortPrice:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PriceValue < items[j].PriceValue
		})
	case models.SortPricePerUnit:
		sortByUnitPrice(items)
	case models.SortRating:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].RatingValue > items[j].RatingValue
		})
	case models.SortTitle:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		})
	}
}

// sortByUnitPrice partitions items into those with a real per-unit figure
// and those without, sorts each group ascending, and concatenates the
// valid-unit group first. Items without a unit carry the total price as
// their per-unit value, which is not comparable with a genuine unit
// price, so the groups must never interleave.
func sortByUnitPrice(items []models.Product) {
	withUnit := make([]models.Product, 0, len(items))
	withoutUnit := make([]models.Product, 0, len(items))
	for _, item := range items {
		if item.HasUnitPrice() {
			withUnit = append(withUnit, item)
		} else {
			withoutUnit = append(withoutUnit, item)
		}
	}

	sort.SliceStable(withUnit, func(i, j int) bool {
		return withUnit[i].PricePerUnitValue < withUnit[j].PricePerUnitValue
	})
	sort.SliceStable(withoutUnit, func(i, j int) bool {
		return withoutUnit[i].PricePerUnitValue < withoutUnit[j].PricePerUnitValue
	})

	copy(items, withUnit)
	copy(items[len(withUnit):], withoutUnit)
}
