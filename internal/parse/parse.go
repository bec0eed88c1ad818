package parse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"feedsvc/internal/urlstore"
)

// Fetcher is the slice of the URL store the adapters need.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts urlstore.Options) (*urlstore.Resource, error)
	RedirectChain(ctx context.Context, url string) ([]string, error)
}

// HubSubscriber initiates a PubSubHubbub subscription for a feed.
type HubSubscriber interface {
	Subscribe(ctx context.Context, feedURL, hubURL string) error
}

// Adapter turns a fetched resource into a normalized feed. HandlesURL
// decides dispatch; the first matching adapter wins.
type Adapter interface {
	Name() string
	HandlesURL(url string) bool
	Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error)
}

// Options control one parse request. The zero value disables all
// optional behavior; handlers start from DefaultParseOptions.
type Options struct {
	// UseCache enables the URL store lookup for the feed and every
	// secondary fetch (logos, API calls, watch pages).
	UseCache bool
	// ModifiedSince drops feeds that have not changed since this time.
	ModifiedSince time.Time
	// InlineLogo embeds the feed logo as a data URI.
	InlineLogo bool
	// ScaleLogo bounds the logo's longer side in pixels. 0 keeps the
	// original size. Only used with InlineLogo.
	ScaleLogo int
	// LogoFormat converts the logo to "png" or "jpeg". Empty keeps the
	// original format. Only used with InlineLogo.
	LogoFormat string
	// TextProcessor is applied to all free-text fields. Nil disables
	// processing.
	TextProcessor TextProcessor
}

// DefaultParseOptions enable the cache and nothing else.
func DefaultParseOptions() *Options {
	return &Options{UseCache: true}
}

// Service dispatches feed URLs to adapters and drives the full
// fetch, parse, post-process, subscribe pipeline.
type Service struct {
	fetcher    Fetcher
	adapters   []Adapter
	subscriber HubSubscriber
	// extraTTL extends the cache lifetime of fetched feeds beyond the
	// upstream Expires header.
	extraTTL time.Duration
}

// NewService builds the dispatcher with the fixed adapter order:
// YouTube, Vimeo, Soundcloud favorites, Soundcloud, FM4, then the
// generic fallback. The subscriber may be nil to disable hub
// subscriptions.
func NewService(fetcher Fetcher, subscriber HubSubscriber, soundcloudConsumerKey string, extraTTL time.Duration, resolveFileRedirects bool) *Service {
	var resolver RedirectResolver
	if resolveFileRedirects {
		resolver = fetcher
	}
	generic := NewFeedparserAdapter(resolver)

	return &Service{
		fetcher:    fetcher,
		subscriber: subscriber,
		extraTTL:   extraTTL,
		adapters: []Adapter{
			NewYoutubeAdapter(fetcher, generic),
			NewVimeoAdapter(fetcher, generic),
			NewSoundcloudFavAdapter(fetcher, soundcloudConsumerKey),
			NewSoundcloudAdapter(fetcher, soundcloudConsumerKey),
			NewFM4Adapter(),
			generic,
		},
	}
}

// AdapterFor returns the first adapter that handles the URL. The
// generic fallback guarantees a match.
func (s *Service) AdapterFor(url string) Adapter {
	for _, adapter := range s.adapters {
		if adapter.HandlesURL(url) {
			return adapter
		}
	}
	return s.adapters[len(s.adapters)-1]
}

// ParseOne fetches and normalizes a single feed. A nil feed without
// error means the feed is unchanged since opts.ModifiedSince and is to
// be skipped. Fetch and parse failures yield a stub feed carrying the
// error; the batch never aborts on one bad URL.
func (s *Service) ParseOne(ctx context.Context, url string, opts *Options) *Feed {
	adapter := s.AdapterFor(url)

	res, err := s.fetcher.Fetch(ctx, url, urlstore.Options{
		UseCache:        opts.UseCache,
		IfModifiedSince: opts.ModifiedSince,
		ExtraTTL:        s.extraTTL,
	})
	if errors.Is(err, urlstore.ErrNotModified) {
		return nil
	}
	if err != nil {
		slog.Warn("Feed fetch failed", "url", url, "error", err)
		return finishFeed(ctx, stubFeed(url, err), s.fetcher, opts)
	}
	if !res.ChangedSince(opts.ModifiedSince) {
		return nil
	}

	feed, err := adapter.Parse(ctx, res, opts)
	if err != nil {
		slog.Warn("Feed parse failed", "url", url, "adapter", adapter.Name(), "error", err)
		stub := stubFeed(url, err)
		// a moved feed has no body to parse, but the batch must still
		// follow the new location
		stub.NewLocation = res.PermanentRedirect
		return finishFeed(ctx, stub, s.fetcher, opts)
	}

	if feed.Hub != "" && s.subscriber != nil {
		// the last URL in the redirect chain is the topic
		topic := res.URL
		if topic == "" {
			topic = url
		}
		if err := s.subscriber.Subscribe(ctx, topic, feed.Hub); err != nil {
			slog.Warn("Hub subscription failed", "url", url, "hub", feed.Hub, "error", err)
			feed.AddWarning("hub-subscription", err.Error())
		}
	}

	return finishFeed(ctx, feed, s.fetcher, opts)
}

// ParseBatch parses a list of feed URLs. A feed announcing a
// new_location enqueues that target too, so moved feeds appear in the
// result under both URLs. A visited set prevents redirect cycles.
func (s *Service) ParseBatch(ctx context.Context, urls []string, opts *Options) []*Feed {
	worklist := append([]string(nil), urls...)
	queued := make(map[string]bool, len(worklist))
	for _, url := range worklist {
		queued[url] = true
	}

	feeds := make([]*Feed, 0, len(worklist))
	for i := 0; i < len(worklist); i++ {
		url := worklist[i]
		feed := s.ParseOne(ctx, url, opts)
		if feed == nil {
			continue
		}
		if loc := feed.NewLocation; loc != "" && !queued[loc] {
			queued[loc] = true
			worklist = append(worklist, loc)
		}
		feeds = append(feeds, feed)
	}
	return feeds
}

// requestedURL is the URL the client asked for, before sanitizing and
// redirects.
func requestedURL(res *urlstore.Resource) string {
	if len(res.URLs) > 0 {
		return res.URLs[0]
	}
	return res.URL
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	unique := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	return unique
}
