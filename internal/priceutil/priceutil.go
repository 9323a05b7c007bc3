// Package priceutil contains pure helpers for parsing scraped currency
// strings and unit-price expressions. Scraped sites mix US and EU numeric
// formatting, so the comma handling here is deliberate, not cosmetic.
package priceutil

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars = regexp.MustCompile(`[^0-9.,]`)
	// "1,049" / "12,345,678.99": groups of three digits after the first comma.
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d{1,2})?$`)
	// "1,99": EU-style decimal comma.
	decimalCommaPattern = regexp.MustCompile(`^\d+,\d{2}$`)

	unitPricePattern = regexp.MustCompile(`\(\s*[^()0-9]{0,4}([0-9][0-9.,]*)\s*/\s*([^()]+?)\s*\)`)
	unitLeadingQty   = regexp.MustCompile(`^[0-9][0-9.,]*\s*`)
)

// Ratio window for a believable unit price relative to the total price.
// Outside it the parenthetical was almost certainly an unrelated number.
const (
	minUnitRatio = 0.001
	maxUnitRatio = 50
)

var knownUnits = map[string]bool{
	"ml": true, "l": true, "cl": true, "fl oz": true, "fluid ounce": true,
	"g": true, "mg": true, "kg": true, "oz": true, "ounce": true, "lb": true, "pound": true,
	"unit": true, "count": true, "ct": true, "piece": true, "pack": true,
	"each": true, "item": true, "ea": true,
	"sq ft": true, "ft": true, "foot": true, "meter": true, "m": true,
	"load": true, "tablet": true, "capsule": true, "gummy": true,
	"wipe": true, "sheet": true, "100 ml": true, "100 g": true,
}

// ParsePrice extracts a float value from a scraped price string,
// disambiguating thousands separators from decimal commas.
// "$1,049.99" -> 1049.99, "1,99" -> 1.99, "$12,345" -> 12345.
func ParsePrice(text string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" {
		return 0
	}

	switch {
	case thousandsPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case decimalCommaPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return val
}

// ExtractUnitPrice locates a parenthetical unit-price expression such as
// "($3.49/100 ml)" inside containerText and returns its numeric value and
// unit token. The result is discarded when the value is implausible
// relative to totalPrice or the unit is not a known measure, since a bad
// unit price silently corrupts per-unit sorting.
func ExtractUnitPrice(containerText string, totalPrice float64) (float64, string, bool) {
	matches := unitPricePattern.FindAllStringSubmatch(containerText, -1)
	for _, m := range matches {
		value := ParsePrice(m[1])
		unit := normalizeUnit(m[2])
		if value <= 0 || unit == "" {
			continue
		}
		if !validUnit(unit) {
			continue
		}
		if totalPrice > 0 {
			ratio := value / totalPrice
			if ratio < minUnitRatio || ratio > maxUnitRatio {
				continue
			}
		}
		return value, unit, true
	}
	return 0, "", false
}

func normalizeUnit(raw string) string {
	unit := strings.ToLower(strings.TrimSpace(raw))
	unit = strings.Trim(unit, ".,")
	return strings.Join(strings.Fields(unit), " ")
}

// validUnit accepts "ml", "fl oz" and quantity-prefixed forms like "100 ml".
func validUnit(unit string) bool {
	if knownUnits[unit] {
		return true
	}
	bare := strings.TrimSpace(unitLeadingQty.ReplaceAllString(unit, ""))
	if bare == "" {
		return false
	}
	return knownUnits[bare] || knownUnits[strings.TrimSuffix(bare, "s")]
}
