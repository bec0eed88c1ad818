package parse

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"feedsvc/internal/urlstore"
)

const (
	youtubeChannelFeed  = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	youtubePlaylistFeed = "https://www.youtube.com/feeds/videos.xml?playlist_id=%s"
	youtubeUserPage     = "https://www.youtube.com/user/%s"
)

var (
	youtubeChannelRe  = regexp.MustCompile(`channel/([_a-zA-Z0-9-]+)`)
	youtubePlaylistRe = regexp.MustCompile(`playlist\?list=([_a-zA-Z0-9-]+)`)

	// URL shapes that predate the videos.xml feeds and no longer work.
	// The first group is a channel ID, the remaining ones are usernames.
	youtubeOldIDRes = []*regexp.Regexp{
		regexp.MustCompile(`^https?://gdata\.youtube\.com/feeds/api/users/([_a-zA-Z0-9-]+)/uploads`),
	}
	youtubeOldUserRes = []*regexp.Regexp{
		regexp.MustCompile(`^https?://(?:[a-z]+\.)?youtube\.com/rss/user/([A-Za-z0-9-]+)/videos\.rss`),
		regexp.MustCompile(`^https?://(?:[a-z]+\.)?youtube\.com/profile\?user=([A-Za-z0-9-]+)`),
		regexp.MustCompile(`^https?://gdata\.youtube\.com/feeds/users/([^/]+)/uploads`),
		regexp.MustCompile(`^https?://gdata\.youtube\.com/feeds/base/users/([^/]+)/uploads`),
	}

	youtubeVideoRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?youtube\.com/v/(.+)\.swf`),
		regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?youtube\.com/watch\?v=([^&]+)`),
		regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?youtube\.com/v/(.+)\?`),
	}
)

// YoutubeVideoID extracts the video ID from a watch or embed URL, or
// returns the empty string.
func YoutubeVideoID(url string) string {
	for _, re := range youtubeVideoRes {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

func IsYoutubeVideoLink(url string) bool { return YoutubeVideoID(url) != "" }

// YoutubeAdapter turns YouTube channel, user and playlist URLs into
// normalized feeds by locating the canonical videos.xml feed and running
// it through the generic extractor. When the page scrape fails the
// adapter degrades to a generic parse of the fetched resource instead of
// erroring.
type YoutubeAdapter struct {
	fetcher Fetcher
	generic *FeedparserAdapter
}

func NewYoutubeAdapter(fetcher Fetcher, generic *FeedparserAdapter) *YoutubeAdapter {
	return &YoutubeAdapter{fetcher: fetcher, generic: generic}
}

func (a *YoutubeAdapter) Name() string { return "youtube" }

func (a *YoutubeAdapter) HandlesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

func (a *YoutubeAdapter) Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error) {
	orig := requestedURL(res)
	current := rewriteLegacyYoutubeURL(orig)

	feedURL, feedRes := a.resolveFeed(ctx, orig, current, res, opts)

	feed, _, err := a.generic.parseDocument(ctx, feedRes)
	if err != nil {
		return nil, err
	}

	feed.URLs = uniqueStrings([]string{orig, current, feedURL})
	feed.Logo = ""
	feed.fixedContentTypes = []string{"video"}
	return feed, nil
}

// resolveFeed turns the current URL into the canonical videos.xml feed
// resource. Every failure falls back to the already fetched resource.
func (a *YoutubeAdapter) resolveFeed(ctx context.Context, orig, current string, res *urlstore.Resource, opts *Options) (string, *urlstore.Resource) {
	fetchOpts := urlstore.Options{UseCache: opts.UseCache}

	pageRes := res
	if current != orig {
		fetched, err := a.fetcher.Fetch(ctx, current, fetchOpts)
		if err != nil {
			return orig, res
		}
		pageRes = fetched
	}

	canonical := canonicalLink(pageRes.Content)
	feedURL := youtubeFeedURL(canonical)
	if feedURL == "" || feedURL == orig {
		return current, pageRes
	}

	feedRes, err := a.fetcher.Fetch(ctx, feedURL, fetchOpts)
	if err != nil {
		return orig, res
	}
	return feedURL, feedRes
}

// rewriteLegacyYoutubeURL maps retired feed URL shapes onto their
// current equivalents. Unknown shapes pass through.
func rewriteLegacyYoutubeURL(url string) string {
	for _, re := range youtubeOldIDRes {
		if m := re.FindStringSubmatch(url); m != nil {
			return fmt.Sprintf(youtubeChannelFeed, m[1])
		}
	}
	for _, re := range youtubeOldUserRes {
		if m := re.FindStringSubmatch(url); m != nil {
			return fmt.Sprintf(youtubeUserPage, m[1])
		}
	}
	return url
}

// youtubeFeedURL maps a canonical channel or playlist URL onto the
// matching videos.xml feed URL.
func youtubeFeedURL(canonical string) string {
	if canonical == "" {
		return ""
	}
	if m := youtubeChannelRe.FindStringSubmatch(canonical); m != nil {
		return fmt.Sprintf(youtubeChannelFeed, m[1])
	}
	if m := youtubePlaylistRe.FindStringSubmatch(canonical); m != nil {
		return fmt.Sprintf(youtubePlaylistFeed, m[1])
	}
	return ""
}

// canonicalLink extracts the href of <link rel="canonical"> from an
// HTML document, or returns the empty string.
func canonicalLink(content []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(content)))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "link" || !hasAttr {
				continue
			}
			var rel, href string
			for {
				key, value, more := tokenizer.TagAttr()
				switch string(key) {
				case "rel":
					rel = string(value)
				case "href":
					href = string(value)
				}
				if !more {
					break
				}
			}
			if rel == "canonical" && href != "" {
				return href
			}
		}
	}
}
