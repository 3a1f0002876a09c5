package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RetryingFetcher is the shared HTTP fetcher. It keeps a client and a
// ticker-based rate limiter per domain, retries transient failures with
// exponential backoff, and honors Retry-After on 429 responses.
type RetryingFetcher struct {
	clients       map[string]*http.Client
	limiters      map[string]*time.Ticker
	configs       map[string]FetchConfig
	defaultConfig FetchConfig
	mu            sync.RWMutex
}

// NewRetryingFetcher creates a fetcher with the given defaults. Zero
// fields get conservative values.
func NewRetryingFetcher(defaultConfig FetchConfig) *RetryingFetcher {
	if defaultConfig.TimeoutSeconds == 0 {
		defaultConfig.TimeoutSeconds = 30
	}
	if defaultConfig.MaxRetries == 0 {
		defaultConfig.MaxRetries = 3
	}
	if defaultConfig.RateLimitRPS == 0 {
		defaultConfig.RateLimitRPS = 1.0
	}
	if defaultConfig.AcceptLanguage == "" {
		defaultConfig.AcceptLanguage = "en-US,en;q=0.5"
	}

	return &RetryingFetcher{
		clients:       make(map[string]*http.Client),
		limiters:      make(map[string]*time.Ticker),
		configs:       make(map[string]FetchConfig),
		defaultConfig: defaultConfig,
	}
}

// Configure registers per-source fetch overrides for a base URL's domain.
func (f *RetryingFetcher) Configure(baseURL string, cfg FetchConfig) {
	domain, err := getDomain(baseURL)
	if err != nil {
		return
	}
	merged := f.defaultConfig
	if cfg.TimeoutSeconds > 0 {
		merged.TimeoutSeconds = cfg.TimeoutSeconds
	}
	if cfg.MaxRetries > 0 {
		merged.MaxRetries = cfg.MaxRetries
	}
	if cfg.RateLimitRPS > 0 {
		merged.RateLimitRPS = cfg.RateLimitRPS
	}
	if cfg.AcceptLanguage != "" {
		merged.AcceptLanguage = cfg.AcceptLanguage
	}

	f.mu.Lock()
	f.configs[domain] = merged
	f.mu.Unlock()
}

func getDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Host, nil
}

func (f *RetryingFetcher) getClient(domain string, cfg FetchConfig) *http.Client {
	f.mu.RLock()
	client, exists := f.clients[domain]
	f.mu.RUnlock()
	if exists {
		return client
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, exists := f.clients[domain]; exists {
		return client
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client = &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect scheme blocked")
			}
			return nil
		},
	}
	f.clients[domain] = client

	interval := time.Duration(float64(time.Second) / cfg.RateLimitRPS)
	if interval <= 0 {
		interval = time.Second
	}
	f.limiters[domain] = time.NewTicker(interval)

	return client
}

// shouldRetry reports whether an error or status code is transient.
// Timeouts and connection-level failures (refused, reset) retry; other
// errors fail the attempt immediately.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return true
		}
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter reads a Retry-After header, capped at 30s so one hostile
// source cannot stall its worker for the whole batch.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		if d > 30*time.Second {
			d = 30 * time.Second
		}
		return d, true
	}
	return 0, false
}

// Fetch implements Fetcher with rate limiting and retries.
func (f *RetryingFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	domain, err := getDomain(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	cfg := f.defaultConfig
	f.mu.RLock()
	if domainCfg, exists := f.configs[domain]; exists {
		cfg = domainCfg
	}
	f.mu.RUnlock()

	client := f.getClient(domain, cfg)

	f.mu.RLock()
	limiter := f.limiters[domain]
	f.mu.RUnlock()
	if limiter != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-limiter.C:
		}
	}

	var lastErr error
	wait := time.Duration(0)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if wait == 0 {
				// Exponential backoff: 0.5s, 1s, 2s plus jitter
				wait = time.Duration(500*(1<<uint(attempt-1)))*time.Millisecond +
					time.Duration(rand.Intn(100))*time.Millisecond
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait = 0
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", cfg.AcceptLanguage)
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return &FetchedDocument{
				URL:         rawURL,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
				FetchedAt:   time.Now().UTC(),
				Headers:     resp.Header,
			}, nil
		}

		if shouldRetry(nil, resp.StatusCode) {
			if d, ok := retryAfter(resp); ok {
				wait = d
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			continue
		}

		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded for %s: %w", strings.TrimSpace(rawURL), lastErr)
}
