package urlstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"feedsvc/internal/config"
)

// ErrNotModified is returned when the server responds 304 and no cached
// entry exists to fall back on.
var ErrNotModified = errors.New("urlstore: not modified")

// ErrTooManyRedirects caps the redirect chain length.
var ErrTooManyRedirects = errors.New("urlstore: too many redirects")

// StatusError reports a non-2xx response on the requested URL.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

// DefaultTimeout bounds a single fetch including redirects.
const DefaultTimeout = 10 * time.Second

// Options control a single Fetch call.
type Options struct {
	// UseCache enables the cache lookup. Results are stored regardless.
	UseCache bool
	// HeadersOnly issues a HEAD request and leaves Content empty.
	HeadersOnly bool
	// ExtraTTL is added to the upstream Expires header, or used as the
	// full TTL when the header is absent.
	ExtraTTL time.Duration
	// IfModifiedSince overrides the cached validator when set.
	IfModifiedSince time.Time
}

// DefaultOptions are the options used by the parse endpoint.
func DefaultOptions() Options {
	return Options{UseCache: true}
}

// Fetcher performs conditional HTTP fetches through a shared cache.
type Fetcher struct {
	cache     Cache
	client    *http.Client
	userAgent string
}

func NewFetcher(cache Cache, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{
		cache:     cache,
		client:    client,
		userAgent: config.UserAgent,
	}
}

// redirectCollector implements the redirect policy: temporary redirects
// (302/303/307) are followed and recorded, permanent ones (301/308) are
// recorded and not followed, so the caller can surface them.
type redirectCollector struct {
	hops              []string
	permanentRedirect string
}

func (c *redirectCollector) check(req *http.Request, via []*http.Request) error {
	switch req.Response.StatusCode {
	case http.StatusMovedPermanently, http.StatusPermanentRedirect:
		c.permanentRedirect = req.URL.String()
		return http.ErrUseLastResponse
	}
	if len(via) >= 10 {
		return ErrTooManyRedirects
	}
	c.hops = append(c.hops, req.URL.String())
	return nil
}

// chain returns the redirect chain for the requested URL: every element
// sanitized, with the original un-sanitized URL prepended when
// sanitizing changed it.
func (c *redirectCollector) chain(requested string) []string {
	urls := []string{Sanitize(requested)}
	for _, hop := range c.hops {
		urls = append(urls, Sanitize(hop))
	}
	if urls[0] != requested {
		urls = append([]string{requested}, urls...)
	}
	return urls
}

// Fetch returns the resource behind url, from the cache when possible.
// Cached entries are revalidated with If-None-Match / If-Modified-Since;
// a 304 refreshes the entry without re-downloading the content.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts Options) (*Resource, error) {
	var cached *Resource
	if opts.UseCache && f.cache != nil {
		var err error
		cached, err = f.cache.Get(ctx, url)
		if err != nil {
			slog.Warn("Cache lookup failed", "url", url, "error", err)
		}
		if cached != nil && !cached.Expired() && (cached.Valid() || opts.HeadersOnly) {
			return cached, nil
		}
	}

	method := http.MethodGet
	if opts.HeadersOnly {
		method = http.MethodHead
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	if !opts.IfModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", opts.IfModifiedSince.UTC().Format(http.TimeFormat))
	} else if cached != nil && !cached.LastModifiedUpstream.IsZero() {
		req.Header.Set("If-Modified-Since", cached.LastModifiedUpstream.UTC().Format(http.TimeFormat))
	}
	if cached != nil && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	collector := &redirectCollector{}
	client := *f.client
	client.CheckRedirect = collector.check

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()

	if resp.StatusCode == http.StatusNotModified {
		if cached == nil {
			return nil, ErrNotModified
		}
		cached.LastModifiedLocal = now
		f.store(ctx, url, cached)
		return cached, nil
	}

	permanent := resp.StatusCode == http.StatusMovedPermanently ||
		resp.StatusCode == http.StatusPermanentRedirect
	if !permanent && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	res := &Resource{
		PermanentRedirect:    collector.permanentRedirect,
		ContentType:          resp.Header.Get("Content-Type"),
		ETag:                 resp.Header.Get("ETag"),
		LastModifiedUpstream: parseHeaderDate(resp.Header.Get("Last-Modified")),
		LastModifiedLocal:    now,
	}
	if permanent && res.PermanentRedirect == "" {
		res.PermanentRedirect = resp.Header.Get("Location")
	}
	res.URLs = collector.chain(url)
	res.URL = res.URLs[len(res.URLs)-1]

	if length := resp.Header.Get("Content-Length"); length != "" {
		if n, err := strconv.ParseInt(length, 10, 64); err == nil {
			res.Length = n
		}
	}

	if !opts.HeadersOnly && !permanent {
		content, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		res.Content = content
	}

	res.Expires = expiry(parseHeaderDate(resp.Header.Get("Expires")), opts.ExtraTTL, now)

	f.store(ctx, url, res)
	return res, nil
}

// Refetch bypasses the cache lookup and stores a fresh copy with the
// given additional TTL. Used by the hub subscriber on notifications.
func (f *Fetcher) Refetch(ctx context.Context, url string, extraTTL time.Duration) (*Resource, error) {
	return f.Fetch(ctx, url, Options{ExtraTTL: extraTTL})
}

// RedirectChain resolves the redirect chain of a URL with a HEAD
// request. A recorded permanent redirect is appended as the final hop.
func (f *Fetcher) RedirectChain(ctx context.Context, url string) ([]string, error) {
	res, err := f.Fetch(ctx, url, Options{UseCache: true, HeadersOnly: true})
	if err != nil {
		return nil, err
	}
	urls := res.URLs
	if res.PermanentRedirect != "" {
		urls = append(urls, res.PermanentRedirect)
	}
	return urls, nil
}

// Invalidate drops the cache entry for a URL.
func (f *Fetcher) Invalidate(ctx context.Context, url string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, url); err != nil {
		slog.Warn("Cache invalidation failed", "url", url, "error", err)
	}
}

func (f *Fetcher) store(ctx context.Context, url string, res *Resource) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, url, res); err != nil {
		slog.Warn("Cache store failed", "url", url, "error", err)
	}
}

// expiry combines the upstream Expires header with the additive TTL. A
// date that is not strictly in the future is discarded so stored
// entries always satisfy expires > lastModifiedLocal.
func expiry(upstream time.Time, extraTTL time.Duration, now time.Time) time.Time {
	var expires time.Time
	switch {
	case !upstream.IsZero():
		expires = upstream.Add(extraTTL)
	case extraTTL > 0:
		expires = now.Add(extraTTL)
	default:
		return time.Time{}
	}
	if !expires.After(now) {
		return time.Time{}
	}
	return expires
}

// parseHeaderDate parses RFC 2822 / RFC 1123 header dates. The zero
// time is returned for absent or malformed values.
func parseHeaderDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t.UTC()
	}
	if t, err := http.ParseTime(value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
