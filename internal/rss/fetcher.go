// Package rss provides feed fetching, parsing and link validation.
package rss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bryan-buckman/infowatch/internal/model"
)

// Fetch defaults.
const (
	DefaultTimeout = 10 * time.Second
	// MaxConcurrencyPerDomain limits parallel requests to any single domain
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain
	DelayBetweenDomainRequests = 500 * time.Millisecond

	maxDocumentSize = 10 << 20
)

// ErrTooLarge is returned, together with model.ErrNetwork, for a response
// body over the document size limit.
var ErrTooLarge = errors.New("document too large")

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu          sync.Mutex
	perDomain   int
	delay       time.Duration
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

func newDomainLimiter(perDomain int, delay time.Duration) *domainLimiter {
	if perDomain < 1 {
		perDomain = 1
	}
	return &domainLimiter{
		perDomain:   perDomain,
		delay:       delay,
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the domain, blocking if necessary.
// It also enforces the minimum delay between requests to the same domain.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.semaphores[domain]
	if !ok {
		sem = make(chan struct{}, dl.perDomain)
		dl.semaphores[domain] = sem
	}
	dl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	dl.mu.Lock()
	lastReq := dl.lastRequest[domain]
	dl.mu.Unlock()

	if !lastReq.IsZero() && dl.delay > 0 {
		if elapsed := time.Since(lastReq); elapsed < dl.delay {
			select {
			case <-time.After(dl.delay - elapsed):
			case <-ctx.Done():
				<-sem
				return ctx.Err()
			}
		}
	}
	return nil
}

// release returns a slot for the domain and records the request time.
func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.lastRequest[domain] = time.Now()
	if sem, ok := dl.semaphores[domain]; ok {
		<-sem
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	return u.Host
}

// FetcherConfig configures a Fetcher. Zero values select the defaults; a
// negative HostDelay disables the per-domain delay.
type FetcherConfig struct {
	// ProxyURL routes requests through an allorigins-style relay that
	// answers `?url=<feed>` with a JSON body carrying the document in
	// `contents`. Empty means fetch directly.
	ProxyURL   string
	UserAgent  string
	Timeout    time.Duration
	PerDomain  int
	HostDelay  time.Duration
	HTTPClient *http.Client
}

// Fetcher retrieves raw feed documents, one network round trip per call.
// It never retries and never caches.
type Fetcher struct {
	client        *http.Client
	proxy         *url.URL
	userAgent     string
	timeout       time.Duration
	domainLimiter *domainLimiter
}

// NewFetcher creates a fetcher from cfg.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	f := &Fetcher{
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.userAgent == "" {
		f.userAgent = "infowatch/1.0"
	}
	perDomain := cfg.PerDomain
	if perDomain == 0 {
		perDomain = MaxConcurrencyPerDomain
	}
	delay := cfg.HostDelay
	switch {
	case delay == 0:
		delay = DelayBetweenDomainRequests
	case delay < 0:
		delay = 0
	}
	f.domainLimiter = newDomainLimiter(perDomain, delay)

	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("parse proxy url %q: invalid", cfg.ProxyURL)
		}
		f.proxy = u
	}
	return f, nil
}

// buildProxyURL wraps feedURL in the relay endpoint.
func (f *Fetcher) buildProxyURL(feedURL string) string {
	u := *f.proxy
	q := u.Query()
	q.Set("disableCache", "true")
	q.Set("url", feedURL)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch returns the raw document at feedURL. Any transport failure,
// including timeout, cancellation and non-2xx status, wraps model.ErrNetwork.
//
// Waiting for a slot in the per-domain limiter is bounded by ctx only; the
// fetch timeout covers the request itself.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, error) {
	domain := extractDomain(feedURL)
	if f.proxy != nil {
		domain = f.proxy.Host
	}
	if err := f.domainLimiter.acquire(ctx, domain); err != nil {
		return "", fmt.Errorf("%w: rate limit cancelled for %s: %w", model.ErrNetwork, feedURL, err)
	}
	defer f.domainLimiter.release(domain)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := feedURL
	if f.proxy != nil {
		target = f.buildProxyURL(feedURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request for %s: %v", model.ErrNetwork, feedURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", model.ErrNetwork, feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: get %s: status %d", model.ErrNetwork, feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", model.ErrNetwork, feedURL, err)
	}
	if len(body) > maxDocumentSize {
		return "", fmt.Errorf("%w: read %s: %w (over %d bytes)", model.ErrNetwork, feedURL, ErrTooLarge, maxDocumentSize)
	}

	if f.proxy == nil {
		return string(body), nil
	}

	var relayed struct {
		Contents string `json:"contents"`
	}
	if err := json.Unmarshal(body, &relayed); err != nil {
		return "", fmt.Errorf("%w: decode relay response for %s: %v", model.ErrNetwork, feedURL, err)
	}
	return relayed.Contents, nil
}
