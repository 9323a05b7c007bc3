// Package search composes fetch, extraction, caching and filtering into
// the three request flows: fresh search, filter-only change, and
// load-more.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/retailsearch/internal/cache"
	"github.com/maltedev/retailsearch/internal/extractor"
	"github.com/maltedev/retailsearch/internal/fetcher"
	"github.com/maltedev/retailsearch/internal/filter"
	"github.com/maltedev/retailsearch/internal/models"
)

// ErrBaseCacheMiss means a filter-only or load-more request found no base
// entry to derive from; the caller must issue a fresh search.
var ErrBaseCacheMiss = errors.New("no cached base result set; issue a fresh search")

// PageFetcher is the fetch dependency; satisfied by *fetcher.Fetcher.
type PageFetcher interface {
	FetchWithFallback(ctx context.Context, rawURL string, country models.Country) (*fetcher.Result, error)
}

// Config is the orchestrator's slice of the application configuration.
type Config struct {
	AffiliateTags map[models.Country]string
	CacheTTL      time.Duration
}

// Service is the orchestrator. Platforms are fetched sequentially; item
// order across platforms is concatenation order, nothing stronger.
type Service struct {
	fetcher PageFetcher
	store   cache.Store
	cfg     Config
	logger  *slog.Logger
}

func NewService(f PageFetcher, store cache.Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	return &Service{
		fetcher: f,
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "search"),
	}
}

func normalizeRequest(req *models.SearchRequest) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Country == "" {
		req.Country = models.CountryUS
	}
	if len(req.Platforms) == 0 {
		req.Platforms = []models.Platform{models.PlatformAmazon}
	}
	if req.Page == 0 {
		req.Page = 1
	}
}

// Search runs a fresh scrape across the requested platforms, writes the
// base entry plus a derived entry for the current filter/sort, and
// returns the display view.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) *models.SearchResponse {
	normalizeRequest(&req)

	if req.Query == "" {
		return &models.SearchResponse{Success: true, Items: []models.Product{}}
	}
	// Pages beyond the first belong to LoadMore; serving page-1 results
	// under a deeper page number would mislabel them.
	if req.Page > 1 {
		return s.failure(req, fmt.Sprintf("a fresh search serves page 1 only; use load more for pages 2 to %d", models.MaxPage), nil)
	}

	var (
		mergedRaw       []models.Product
		mergedDisplay   []models.Product
		paginationLinks map[int]string
		platformErrors  = make(map[models.Platform]string)
	)

	for _, platform := range req.Platforms {
		result, err := s.fetchPlatform(ctx, platform, req, 1)
		if err != nil {
			platformErrors[platform] = platformErrorMessage(err)
			continue
		}
		mergedRaw = append(mergedRaw, result.Raw...)
		mergedDisplay = append(mergedDisplay, result.Items...)
		if platform == models.PlatformAmazon && len(result.PaginationLinks) > 0 {
			paginationLinks = result.PaginationLinks
		}
	}

	if len(mergedRaw) == 0 {
		return s.failure(req, "no results could be retrieved", platformErrors)
	}

	// MinRating was already applied per-extractor with the lenient
	// keep-unrated policy, so the engine only handles exclude and sort.
	display := filter.Apply(mergedDisplay, "", req.ExcludeTerms, req.SortBy, 0)

	now := time.Now()
	base := &cache.Entry{
		Fingerprint:     cache.BaseFingerprint(req.Query, req.Country, req.Identity),
		Kind:            cache.KindBase,
		Query:           req.Query,
		Country:         req.Country,
		Identity:        req.Identity,
		Items:           mergedRaw,
		RawItemCount:    len(mergedRaw),
		PaginationLinks: paginationLinks,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.CacheTTL),
	}
	s.persist(ctx, base)

	if req.ExcludeTerms != "" || req.SortBy != models.SortNone {
		s.persist(ctx, s.derivedEntry(base, req, display))
	}

	resp := &models.SearchResponse{
		Success:         true,
		Items:           display,
		Count:           len(display),
		BaseItemsCount:  len(mergedRaw),
		PaginationLinks: paginationLinks,
	}
	if len(platformErrors) > 0 {
		resp.PlatformErrors = platformErrors
	}
	return resp
}

// Filter serves a changed (exclude, sort) combination from cache alone.
// No network fetch happens here under any circumstances.
func (s *Service) Filter(ctx context.Context, req models.SearchRequest) *models.SearchResponse {
	normalizeRequest(&req)

	if req.Query == "" {
		return &models.SearchResponse{Success: true, Items: []models.Product{}}
	}

	derivedFP := cache.Fingerprint(req.Query, req.Country, req.ExcludeTerms, req.SortBy, req.Identity)
	if entry, err := s.store.Get(ctx, derivedFP, req.Identity); err == nil && entry.Fresh(time.Now(), s.cfg.CacheTTL) {
		return s.responseFromEntry(entry)
	}

	base, err := s.freshBase(ctx, req)
	if err != nil {
		return s.failure(req, ErrBaseCacheMiss.Error(), nil)
	}

	// Engine policy on an explicit floor: unrated items are excluded.
	display := filter.Apply(base.Items, "", req.ExcludeTerms, req.SortBy, req.MinRating)

	derived := s.derivedEntry(base, req, display)
	if derived.Fingerprint != base.Fingerprint {
		s.persist(ctx, derived)
	}
	return s.responseFromEntry(derived)
}

// LoadMore fetches page 2 or 3 from every platform that supports
// pagination and folds the new items into the existing base entry.
func (s *Service) LoadMore(ctx context.Context, req models.SearchRequest) *models.SearchResponse {
	normalizeRequest(&req)

	if req.Page < 2 || req.Page > models.MaxPage {
		return s.failure(req, fmt.Sprintf("load more supports pages 2 to %d", models.MaxPage), nil)
	}
	base, err := s.freshBase(ctx, req)
	if err != nil {
		return s.failure(req, ErrBaseCacheMiss.Error(), nil)
	}

	platformErrors := make(map[models.Platform]string)
	merged := base.Items

	for _, platform := range req.Platforms {
		if !extractor.SupportsLoadMore(platform) {
			platformErrors[platform] = extractor.CapabilityError{Platform: platform, Op: "load more"}.Error()
			continue
		}

		pageURL := ""
		switch platform {
		case models.PlatformAmazon:
			pageURL = base.PaginationLinks[req.Page]
			if pageURL == "" {
				platformErrors[platform] = fmt.Sprintf("no stored pagination link for page %d", req.Page)
				continue
			}
		case models.PlatformEbay:
			pageURL = searchURL(platform, req.Country, req.Query, req.Page)
		}

		result, err := s.fetchURL(ctx, platform, pageURL, req)
		if err != nil {
			platformErrors[platform] = platformErrorMessage(err)
			continue
		}
		merged = extractor.Merge(merged, result.Raw)
		if platform == models.PlatformAmazon {
			for page, link := range result.PaginationLinks {
				if base.PaginationLinks == nil {
					base.PaginationLinks = make(map[int]string)
				}
				base.PaginationLinks[page] = link
			}
		}
	}

	now := time.Now()
	base.Items = merged
	base.RawItemCount = len(merged)
	base.CreatedAt = now
	base.ExpiresAt = now.Add(s.cfg.CacheTTL)
	s.persist(ctx, base)

	display := filter.Apply(merged, "", req.ExcludeTerms, req.SortBy, req.MinRating)
	if req.ExcludeTerms != "" || req.SortBy != models.SortNone {
		s.persist(ctx, s.derivedEntry(base, req, display))
	}

	resp := &models.SearchResponse{
		Success:         true,
		Items:           display,
		Count:           len(display),
		BaseItemsCount:  len(merged),
		PaginationLinks: base.PaginationLinks,
	}
	if len(platformErrors) > 0 {
		resp.PlatformErrors = platformErrors
	}
	return resp
}

// freshBase loads the base entry and enforces TTL on read.
func (s *Service) freshBase(ctx context.Context, req models.SearchRequest) (*cache.Entry, error) {
	base, err := s.store.Get(ctx, cache.BaseFingerprint(req.Query, req.Country, req.Identity), req.Identity)
	if err != nil {
		return nil, ErrBaseCacheMiss
	}
	if !base.Fresh(time.Now(), s.cfg.CacheTTL) {
		return nil, ErrBaseCacheMiss
	}
	return base, nil
}

func (s *Service) fetchPlatform(ctx context.Context, platform models.Platform, req models.SearchRequest, page int) (*extractor.Result, error) {
	if !extractor.SupportsSearch(platform) {
		return nil, extractor.CapabilityError{Platform: platform, Op: "search extraction"}
	}
	return s.fetchURL(ctx, platform, searchURL(platform, req.Country, req.Query, page), req)
}

func (s *Service) fetchURL(ctx context.Context, platform models.Platform, pageURL string, req models.SearchRequest) (*extractor.Result, error) {
	ext, err := extractor.ForPlatform(platform)
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetcher.FetchWithFallback(ctx, pageURL, req.Country)
	if err != nil {
		return nil, err
	}

	result, err := ext.Extract(fetched.HTML, extractor.Options{
		AffiliateTag: s.cfg.AffiliateTags[req.Country],
		MinRating:    req.MinRating,
		Country:      req.Country,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("platform extracted",
		"platform", platform,
		"url", pageURL,
		"raw_items", len(result.Raw),
		"display_items", len(result.Items))
	return result, nil
}

func (s *Service) derivedEntry(base *cache.Entry, req models.SearchRequest, display []models.Product) *cache.Entry {
	now := time.Now()
	return &cache.Entry{
		Fingerprint:     cache.Fingerprint(req.Query, req.Country, req.ExcludeTerms, req.SortBy, req.Identity),
		Kind:            cache.KindDerived,
		Query:           req.Query,
		Country:         req.Country,
		Identity:        req.Identity,
		Items:           display,
		RawItemCount:    base.RawItemCount,
		PaginationLinks: base.PaginationLinks,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.CacheTTL),
		BaseFingerprint: base.Fingerprint,
		Filter: cache.FilterSpec{
			Exclude:   req.ExcludeTerms,
			SortBy:    req.SortBy,
			MinRating: req.MinRating,
		},
	}
}

// persist upserts an entry; the cache is an optimization, so a write
// failure is logged and the response proceeds regardless.
func (s *Service) persist(ctx context.Context, entry *cache.Entry) {
	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Error("cache write failed", "fingerprint", entry.Fingerprint, "kind", entry.Kind, "error", err)
	}
}

func (s *Service) responseFromEntry(entry *cache.Entry) *models.SearchResponse {
	return &models.SearchResponse{
		Success:         true,
		Items:           entry.Items,
		Count:           len(entry.Items),
		BaseItemsCount:  entry.RawItemCount,
		PaginationLinks: entry.PaginationLinks,
	}
}

func (s *Service) failure(req models.SearchRequest, message string, platformErrors map[models.Platform]string) *models.SearchResponse {
	resp := &models.SearchResponse{
		Success:          false,
		Items:            []models.Product{},
		Message:          message,
		ManualSearchURLs: make(map[models.Platform]string),
	}
	if len(platformErrors) > 0 {
		resp.PlatformErrors = platformErrors
	}
	for _, platform := range req.Platforms {
		resp.ManualSearchURLs[platform] = manualSearchURL(platform, req.Country, req.Query)
	}
	return resp
}

// platformErrorMessage maps the error taxonomy onto operator-meaningful
// strings. The distinctions matter: a parse failure signals layout
// drift, not a block.
func platformErrorMessage(err error) string {
	var blocked fetcher.BlockedError
	switch {
	case errors.As(err, &blocked):
		return fmt.Sprintf("request blocked (http %d)", blocked.Code)
	case errors.Is(err, extractor.ErrBlockedPage):
		return "robot check page received"
	case errors.Is(err, extractor.ErrInvalidPageFormat):
		return "page format not recognized; marketplace layout may have changed"
	case errors.Is(err, extractor.ErrEmptyExtraction):
		return "no results found"
	default:
		var transport fetcher.TransportError
		if errors.As(err, &transport) {
			return "no response from marketplace"
		}
		return err.Error()
	}
}
