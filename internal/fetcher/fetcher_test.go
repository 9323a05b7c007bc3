package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/retailsearch/internal/extractor"
	"github.com/maltedev/retailsearch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(cfg Config) *Fetcher {
	f := New(cfg, testLogger())
	httpmock.ActivateNonDefault(f.direct)
	return f
}

func TestFetchSuccess(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		httpmock.NewStringResponder(200, "<html><body>results</body></html>"))

	result, err := f.Fetch(context.Background(), "https://www.amazon.com/s", models.CountryUS, false)
	require.NoError(t, err)
	assert.Contains(t, result.HTML, "results")
	assert.False(t, result.ViaProxy)
}

func TestFetchClassifiesBlockingCodes(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	for _, code := range []int{429, 403, 502, 503, 504} {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
			httpmock.NewStringResponder(code, "denied"))

		_, err := f.Fetch(context.Background(), "https://www.amazon.com/s", models.CountryUS, false)
		require.Error(t, err)
		assert.True(t, IsRetryableBlock(err), "code %d should be a retryable block", code)
	}
}

func TestFetchNonBlockingCodeNotRetryable(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		httpmock.NewStringResponder(404, "gone"))

	_, err := f.Fetch(context.Background(), "https://www.amazon.com/s", models.CountryUS, false)
	require.Error(t, err)
	assert.False(t, IsRetryableBlock(err))
}

func TestFetchDetectsChallengePage(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		httpmock.NewStringResponder(200, "<html>Robot Check</html>"))

	_, err := f.Fetch(context.Background(), "https://www.amazon.com/s", models.CountryUS, false)
	require.Error(t, err)
	assert.True(t, IsRetryableBlock(err))
}

func TestFetchTransportError(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		httpmock.NewErrorResponder(io.ErrUnexpectedEOF))

	_, err := f.Fetch(context.Background(), "https://www.amazon.com/s", models.CountryUS, false)
	require.Error(t, err)
	assert.False(t, IsRetryableBlock(err))
}

// A 503 on the direct path triggers exactly one proxied retry, and a
// clean proxied response turns the whole fetch into a success.
func TestFetchWithFallbackRetriesOnceViaProxy(t *testing.T) {
	f := New(Config{Proxy: ProxyConfig{
		Host:     "proxy.example.net",
		Port:     8080,
		Username: "scraper01",
		Password: "secret",
	}}, testLogger())
	httpmock.ActivateNonDefault(f.direct)
	httpmock.ActivateNonDefault(f.proxied[models.CountryUS])
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(503, "unavailable"), nil
			}
			return httpmock.NewStringResponse(200, "<html>ok</html>"), nil
		})

	result, err := f.FetchWithFallback(context.Background(), "https://www.amazon.com/s", models.CountryUS)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, result.ViaProxy)
}

func TestFetchWithFallbackNoSecondRetry(t *testing.T) {
	f := New(Config{Proxy: ProxyConfig{
		Host:     "proxy.example.net",
		Port:     8080,
		Username: "scraper01",
		Password: "secret",
	}}, testLogger())
	httpmock.ActivateNonDefault(f.direct)
	httpmock.ActivateNonDefault(f.proxied[models.CountryUS])
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(503, "unavailable"), nil
		})

	_, err := f.FetchWithFallback(context.Background(), "https://www.amazon.com/s", models.CountryUS)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, IsRetryableBlock(err))
}

func TestFetchWithFallbackNoProxyConfigured(t *testing.T) {
	f := newTestFetcher(Config{})
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, "https://www.amazon.com/s",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(503, "unavailable"), nil
		})

	_, err := f.FetchWithFallback(context.Background(), "https://www.amazon.com/s", models.CountryUS)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestProxyURLCountrySuffix(t *testing.T) {
	f := New(Config{Proxy: ProxyConfig{
		Host:     "proxy.example.net",
		Port:     8080,
		Username: "scraper01",
		Password: "secret",
	}}, testLogger())

	u, err := f.proxyURL(models.CountryCA)
	require.NoError(t, err)
	assert.Equal(t, "scraper01-country-ca", u.User.Username())
	assert.Equal(t, "proxy.example.net:8080", u.Host)
}

func TestTrimListingKeepsListingAndPagination(t *testing.T) {
	html := `<html><head><script>junk()</script></head><body>
		<div class="nav-bloat">menus</div>
		<div class="s-main-slot"><div data-component-type="s-search-result" data-asin="B01">item</div></div>
		<span class="s-pagination-strip"><a href="/s?k=x&page=2">2</a></span>
		<footer>footer bloat</footer>
	</body></html>`

	trimmed := TrimListing(html)
	assert.Contains(t, trimmed, "s-search-result")
	assert.Contains(t, trimmed, "page=2")
	assert.NotContains(t, trimmed, "nav-bloat")
	assert.NotContains(t, trimmed, "footer bloat")
}

func TestTrimListingUnknownMarkupUntouched(t *testing.T) {
	html := "<html><body><p>nothing recognizable</p></body></html>"
	assert.Equal(t, html, TrimListing(html))
}

// Trimming must never cost the extractor an item: a page with primary,
// sponsored and carousel cards extracts identically before and after.
func TestTrimListingLosslessForAmazonExtraction(t *testing.T) {
	card := func(asin, title, price string) string {
		return `<h2><a href="/dp/` + asin + `" aria-label="` + title + `"><span class="a-text-normal">` + title + `</span></a></h2>
			<span class="a-price"><span class="a-offscreen">` + price + `</span></span>
			<img class="s-image" src="https://m.media-amazon.com/images/` + asin + `.jpg"/>`
	}
	html := `<html><head><script>junk()</script></head><body>
		<div class="nav-bloat">menus</div>
		<div class="s-main-slot s-result-list">
			<div data-component-type="s-search-result" data-asin="B00PRIMARY">` + card("B00PRIMARY", "Primary Item", "$10.00") + `</div>
		</div>
		<div data-component-type="sp-sponsored-result" data-asin="B00SPONSOR">` + card("B00SPONSOR", "Sponsored Item", "$8.88") + `</div>
		<div class="a-carousel-card"><div data-asin="B00CAROUSL">` + card("B00CAROUSL", "Carousel Item", "$7.77") + `</div></div>
		<footer>footer bloat</footer>
	</body></html>`

	ext := extractor.NewAmazon()
	full, err := ext.Extract(html, extractor.Options{Country: models.CountryUS})
	require.NoError(t, err)

	trimmed, err := ext.Extract(TrimListing(html), extractor.Options{Country: models.CountryUS})
	require.NoError(t, err)

	require.Len(t, full.Raw, 3)
	require.Len(t, trimmed.Raw, len(full.Raw))
	for i := range full.Raw {
		assert.Equal(t, full.Raw[i].ASIN, trimmed.Raw[i].ASIN)
		assert.Equal(t, full.Raw[i].Title, trimmed.Raw[i].Title)
	}
}

// A sponsored card nested inside the main slot must not be emitted twice.
func TestTrimListingKeepsNestedContainersOnce(t *testing.T) {
	html := `<html><body><div class="s-main-slot">
		<div data-component-type="sp-sponsored-result" data-asin="B00NESTED0">inner</div>
	</div></body></html>`

	trimmed := TrimListing(html)
	assert.Equal(t, 1, strings.Count(trimmed, "B00NESTED0"))
}
