package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/retailsearch/internal/models"
)

func ebayItemCard(itemID, title, price, rating string) string {
	ratingBlock := ""
	if rating != "" {
		ratingBlock = fmt.Sprintf(`<div class="x-star-rating"><span class="clipped">%s out of 5 stars.</span></div>`, rating)
	}
	return fmt.Sprintf(`
	<li class="s-item">
		<a class="s-item__link" href="https://www.ebay.com/itm/%s?hash=abc123&_trkparms=xyz">
			<div class="s-item__title"><span role="heading">%s</span></div>
		</a>
		<span class="s-item__price">%s</span>
		%s
		<span class="s-item__shipping">Free shipping</span>
		<img class="s-item__image-img" src="https://i.ebayimg.com/images/%s.jpg"/>
	</li>`, itemID, title, price, ratingBlock, itemID)
}

func ebayPage(cards ...string) string {
	return `<html><body><ul class="srp-results srp-river-results">` +
		strings.Join(cards, "\n") + `</ul></body></html>`
}

func TestEbayExtractBlockedPage(t *testing.T) {
	_, err := NewEbay().Extract("<html>Pardon Our Interruption</html>", Options{})
	assert.ErrorIs(t, err, ErrBlockedPage)
}

func TestEbayExtractInvalidPage(t *testing.T) {
	_, err := NewEbay().Extract("<html><body><p>unrelated</p></body></html>", Options{})
	assert.ErrorIs(t, err, ErrInvalidPageFormat)
}

func TestEbayExtractFields(t *testing.T) {
	html := ebayPage(ebayItemCard("123456789012", "Protein Shaker Bottle", "$12.95", "4.5"))

	result, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	require.NoError(t, err)
	require.Len(t, result.Raw, 1)

	p := result.Raw[0]
	assert.Equal(t, "Protein Shaker Bottle", p.Title)
	assert.Equal(t, "123456789012", p.ASIN)
	assert.Equal(t, "https://www.ebay.com/itm/123456789012", p.Link)
	assert.InDelta(t, 12.95, p.PriceValue, 0.001)
	assert.InDelta(t, 4.5, p.RatingValue, 0.001)
	assert.Equal(t, "Free shipping", p.DeliveryText)
	assert.Equal(t, models.PlatformEbay, p.Platform)
	assert.NotEmpty(t, p.ImageURL)
}

func TestEbayExtractZeroRatedAccepted(t *testing.T) {
	// Ratings are seller-based on eBay; an unrated listing is normal and
	// must survive extraction.
	html := ebayPage(ebayItemCard("223456789012", "Unrated Gadget", "$7.50", ""))

	result, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	require.NoError(t, err)
	require.Len(t, result.Raw, 1)
	assert.Zero(t, result.Raw[0].RatingValue)
}

func TestEbayExtractPriceRange(t *testing.T) {
	html := ebayPage(ebayItemCard("323456789012", "Ranged Item", "$5.99 to $12.99", ""))

	result, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	require.NoError(t, err)
	require.Len(t, result.Raw, 1)
	assert.InDelta(t, 5.99, result.Raw[0].PriceValue, 0.001)
}

func TestEbayExtractSkipsPlaceholderCard(t *testing.T) {
	html := ebayPage(
		ebayItemCard("423456789012", "Shop on eBay", "$20.00", ""),
		ebayItemCard("523456789012", "Real Listing", "$20.00", ""),
	)

	result, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	require.NoError(t, err)
	require.Len(t, result.Raw, 1)
	assert.Equal(t, "Real Listing", result.Raw[0].Title)
}

func TestEbayExtractDedupByItemID(t *testing.T) {
	html := ebayPage(
		ebayItemCard("623456789012", "First", "$10.00", ""),
		ebayItemCard("623456789012", "Second Copy", "$11.00", ""),
	)

	result, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	require.NoError(t, err)
	require.Len(t, result.Raw, 1)
	assert.Equal(t, "First", result.Raw[0].Title)
}

func TestEbayExtractRejectsZeroPrice(t *testing.T) {
	html := ebayPage(ebayItemCard("723456789012", "Free Item", "$0.00", ""))

	_, err := NewEbay().Extract(html, Options{Country: models.CountryUS})
	assert.ErrorIs(t, err, ErrEmptyExtraction)
}

func TestStubPlatformsReturnCapabilityError(t *testing.T) {
	for _, platform := range []models.Platform{models.PlatformBestBuy, models.PlatformWalmart} {
		ext, err := ForPlatform(platform)
		require.NoError(t, err)

		_, err = ext.Extract("<html></html>", Options{})
		var capErr CapabilityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, platform, capErr.Platform)
	}
}
