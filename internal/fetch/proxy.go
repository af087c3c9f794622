package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// ErrAllProxiesFailed is returned when every proxy in the chain failed.
var ErrAllProxiesFailed = errors.New("all proxies failed")

const (
	// DefaultAttemptTimeout hard-cancels one in-flight proxy request.
	DefaultAttemptTimeout = 15 * time.Second

	userAgent   = "Mozilla/5.0 (compatible; goldrates/1.0; +https://github.com/qgold/goldrates)"
	maxBodySize = 4 << 20
)

// DefaultProxies returns the built-in proxy chain. Each template carries a
// {url} placeholder replaced with the query-escaped target.
func DefaultProxies() []string {
	return []string{
		"https://api.allorigins.win/get?url={url}",
		"https://corsproxy.io/?{url}",
		"https://api.codetabs.com/v1/proxy?quest={url}",
	}
}

// Fetcher retrieves pages that block direct cross-origin access by relaying
// them through public CORS proxies, falling back down the chain on any
// failure. Proxy availability, not transient network blips, is the dominant
// failure mode, so there is no per-proxy retry.
type Fetcher struct {
	client  *http.Client
	proxies []string
	timeout time.Duration
}

func New(proxies []string, attemptTimeout time.Duration) *Fetcher {
	if len(proxies) == 0 {
		proxies = DefaultProxies()
	}
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Fetcher{
		client:  &http.Client{},
		proxies: proxies,
		timeout: attemptTimeout,
	}
}

// envelope is the JSON wrapper some proxies put around the fetched page.
type envelope struct {
	Contents string `json:"contents"`
}

// Fetch returns the raw body text of target, tried through each proxy in
// order. The first proxy that answers 2xx wins.
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	var lastErr error
	for _, tpl := range f.proxies {
		proxyURL := strings.Replace(tpl, "{url}", url.QueryEscape(target), 1)
		body, err := f.attempt(ctx, proxyURL)
		if err != nil {
			log.Warn().Str("proxy", proxyHost(proxyURL)).Err(err).Msg("proxy attempt failed")
			lastErr = err
			continue
		}
		return unwrap(body), nil
	}
	if lastErr == nil {
		return "", ErrAllProxiesFailed
	}
	return "", fmt.Errorf("%w: %v", ErrAllProxiesFailed, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, proxyURL string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// unwrap peels the {contents: "<html>"} envelope convention some proxies
// use; anything else is returned verbatim.
func unwrap(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return string(body)
	}
	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.Contents != "" {
		return env.Contents
	}
	return string(body)
}

func proxyHost(proxyURL string) string {
	if u, err := url.Parse(proxyURL); err == nil {
		return u.Host
	}
	return proxyURL
}
