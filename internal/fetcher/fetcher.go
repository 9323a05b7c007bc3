// Package fetcher retrieves marketplace search pages, choosing between
// direct and proxied transport and classifying failures so the caller can
// apply the single proxy-fallback retry.
package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/retailsearch/internal/models"
	"github.com/maltedev/retailsearch/internal/netpolicy"
)

const (
	defaultTimeout = 30 * time.Second
	maxRedirects   = 5

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Phrases that mark a challenge page served with HTTP 200.
var blockedBodyMarkers = []string{
	"To discuss automated access to Amazon data",
	"Type the characters you see in this image",
	"api-services-support@amazon.com",
	"Robot Check",
	"Pardon Our Interruption",
	"Please verify yourself to continue",
}

// ProxyConfig is the HTTP CONNECT proxy account. Username is suffixed
// per country ("{user}-country-{cc}") to obtain region-specific exit IPs.
type ProxyConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Configured reports whether a proxy account is available at all.
func (p ProxyConfig) Configured() bool {
	return p.Host != "" && p.Username != ""
}

// Config carries everything a Fetcher needs; all of it comes from the
// hosting application's configuration surface.
type Config struct {
	Proxy             ProxyConfig
	NetworkRules      netpolicy.Rules
	ServerIP          string
	ServerHostname    string
	BandwidthOptimize bool
	Timeout           time.Duration
}

// Result is a successful fetch.
type Result struct {
	HTML     string
	ViaProxy bool
}

// Fetcher performs the HTTP retrieval for one request.
type Fetcher struct {
	cfg     Config
	direct  *http.Client
	proxied map[models.Country]*http.Client
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	f := &Fetcher{
		cfg:     cfg,
		direct:  newClient(cfg.Timeout, nil),
		proxied: make(map[models.Country]*http.Client),
		logger:  logger.With("component", "fetcher"),
	}
	if cfg.Proxy.Configured() {
		for _, country := range []models.Country{models.CountryUS, models.CountryCA} {
			if proxyURL, err := f.proxyURL(country); err == nil {
				f.proxied[country] = newClient(cfg.Timeout, proxyURL)
			}
		}
	}
	return f
}

// newClient builds an HTTP client with the scraping transport defaults.
// TLS verification stays off: scrape targets occasionally present
// delisted or expired certificates and the pages carry no secrets.
func newClient(timeout time.Duration, proxyURL *url.URL) *http.Client {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Fetch retrieves the page at rawURL for the given country, routing
// through the proxy when policy or forceProxy demands it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, country models.Country, forceProxy bool) (*Result, error) {
	useProxy := forceProxy || netpolicy.ShouldUseProxy(f.cfg.NetworkRules, f.cfg.ServerIP, f.cfg.ServerHostname)

	client := f.direct
	if useProxy {
		if proxied, ok := f.proxied[country]; ok {
			client = proxied
		} else {
			useProxy = false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, TransportError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cache-Control", "no-cache")

	f.logger.Debug("fetching page", "url", rawURL, "country", country, "proxy", useProxy)

	resp, err := client.Do(req)
	if err != nil {
		return nil, TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, BlockedError{Code: resp.StatusCode}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	html := string(body)
	if marker, blocked := detectBlockedBody(html); blocked {
		return nil, BlockedError{Code: resp.StatusCode, Reason: marker}
	}

	if f.cfg.BandwidthOptimize {
		html = TrimListing(html)
	}

	return &Result{HTML: html, ViaProxy: useProxy}, nil
}

// FetchWithFallback applies the fallback protocol: a retryable block on a
// direct fetch is retried exactly once through the proxy. No further
// retries happen; bounded latency and proxy cost win over completeness.
func (f *Fetcher) FetchWithFallback(ctx context.Context, rawURL string, country models.Country) (*Result, error) {
	result, err := f.Fetch(ctx, rawURL, country, false)
	if err == nil {
		return result, nil
	}
	if !IsRetryableBlock(err) || !f.cfg.Proxy.Configured() {
		return nil, err
	}
	// If policy already routed the first attempt through the proxy, a
	// forced retry would repeat the identical request.
	if netpolicy.ShouldUseProxy(f.cfg.NetworkRules, f.cfg.ServerIP, f.cfg.ServerHostname) {
		return nil, err
	}

	f.logger.Info("direct fetch blocked, retrying via proxy", "url", rawURL, "error", err)
	return f.Fetch(ctx, rawURL, country, true)
}

func (f *Fetcher) proxyURL(country models.Country) (*url.URL, error) {
	user := fmt.Sprintf("%s-country-%s", f.cfg.Proxy.Username, country)
	raw := fmt.Sprintf("http://%s:%s@%s:%d",
		url.QueryEscape(user), url.QueryEscape(f.cfg.Proxy.Password), f.cfg.Proxy.Host, f.cfg.Proxy.Port)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("build proxy url: %w", err)
	}
	return u, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func detectBlockedBody(html string) (string, bool) {
	for _, marker := range blockedBodyMarkers {
		if strings.Contains(html, marker) {
			return marker, true
		}
	}
	return "", false
}
