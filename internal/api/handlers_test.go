package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/retailsearch/internal/cache"
	"github.com/maltedev/retailsearch/internal/fetcher"
	"github.com/maltedev/retailsearch/internal/models"
	"github.com/maltedev/retailsearch/internal/search"
)

type stubFetcher struct {
	html  string
	calls int
}

func (s *stubFetcher) FetchWithFallback(_ context.Context, _ string, _ models.Country) (*fetcher.Result, error) {
	s.calls++
	return &fetcher.Result{HTML: s.html}, nil
}

func newTestHandlers(t *testing.T) (*Handlers, *stubFetcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	f := &stubFetcher{html: "<html><body></body></html>"}
	svc := search.NewService(f, cache.NewMemoryStore(), search.Config{}, logger)
	return NewHandlers(svc, logger), f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func TestSearchMintsIdentityWhenAbsent(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := `{"query":"","country":"us"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool   `json:"success"`
		Identity string `json:"identity"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Identity)
}

func TestSearchEchoesCallerIdentity(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := `{"query":"","identity":"visitor-42"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Search(rec, req)

	var resp struct {
		Identity string `json:"identity"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "visitor-42", resp.Identity)
}

func TestSearchRejectsMalformedBody(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestSearchEmptyQueryDoesNotFetch(t *testing.T) {
	h, f := newTestHandlers(t)

	body := `{"query":"   "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, f.calls)
}

func TestFilterWithoutBaseReportsMiss(t *testing.T) {
	h, f := newTestHandlers(t)

	body := `{"query":"usb hub","exclude":"adapter","identity":"visitor-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/filter", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Filter(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ManualSearchURLs)
	assert.Zero(t, f.calls, "filter must never fetch")
}

func TestLoadMoreReadsPageFromQueryString(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := `{"query":"usb hub","identity":"visitor-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/load-more?page=2", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.LoadMore(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// No cached base for this identity, so the request fails, but the page
	// must have been parsed from the query string rather than rejected as
	// out of range.
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotContains(t, resp.Message, "page")
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownPlatformNamesAreDropped(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := `{"query":"","platforms":["amazon","myspace"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Search(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
