package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"

	"feedsvc/internal/urlstore"
)

var (
	vimeoChannelRe    = regexp.MustCompile(`(?i)^https?://vimeo\.com/(\d+)$`)
	vimeoMoogaloopRe  = regexp.MustCompile(`(?i)^https?://vimeo\.com/moogaloop\.swf\?clip_id=(\d+)$`)
	vimeoDataConfigRe = regexp.MustCompile(`data-config-url="([^"]+)"`)
)

// fileformat qualities from lowest to highest
var vimeoFormatRanking = []string{"mobile", "sd", "hd"}

// VimeoVideoID extracts the numeric video ID from a watch or moogaloop
// URL, or returns the empty string.
func VimeoVideoID(url string) string {
	if m := vimeoMoogaloopRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := vimeoChannelRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func IsVimeoVideoLink(url string) bool { return VimeoVideoID(url) != "" }

// VimeoAdapter handles vimeo.com/<id> channel URLs. It parses the
// channel's RSS feed generically and replaces each episode's files with
// the best direct download URL resolved from the watch page.
type VimeoAdapter struct {
	fetcher Fetcher
	generic *FeedparserAdapter
}

func NewVimeoAdapter(fetcher Fetcher, generic *FeedparserAdapter) *VimeoAdapter {
	return &VimeoAdapter{fetcher: fetcher, generic: generic}
}

func (a *VimeoAdapter) Name() string { return "vimeo" }

func (a *VimeoAdapter) HandlesURL(url string) bool {
	return vimeoChannelRe.MatchString(url)
}

func (a *VimeoAdapter) Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error) {
	orig := requestedURL(res)

	feedRes := res
	if feedURL := vimeoChannelFeedURL(orig); feedURL != "" {
		fetched, err := a.fetcher.Fetch(ctx, feedURL, urlstore.Options{UseCache: opts.UseCache})
		if err != nil {
			return nil, fmt.Errorf("fetch vimeo channel feed: %w", err)
		}
		feedRes = fetched
	}

	feed, doc, err := a.generic.parseDocument(ctx, feedRes)
	if err != nil {
		return nil, err
	}

	feed.URLs = res.URLs
	feed.Description = orig
	feed.Logo = ""
	feed.fixedContentTypes = []string{"video"}

	for i, item := range doc.Items {
		if i >= len(feed.Episodes) {
			break
		}
		feed.Episodes[i].Files = a.videoFiles(ctx, item, opts)
	}
	return feed, nil
}

// vimeoChannelFeedURL maps vimeo.com/<id> onto the channel's RSS feed.
func vimeoChannelFeedURL(url string) string {
	if m := vimeoChannelRe.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("http://vimeo.com/%s/videos/rss", m[1])
	}
	return ""
}

// videoFiles lists one file per video link of the item, using the
// resolved direct download URL. When resolution fails the watch URL
// itself is surfaced so the episode keeps its media reference.
func (a *VimeoAdapter) videoFiles(ctx context.Context, item *gofeed.Item, opts *Options) []File {
	var files []File
	for _, link := range itemLinks(item) {
		if !IsVimeoVideoLink(link) {
			continue
		}
		dlURL, err := a.resolveDownloadURL(ctx, link, opts)
		if err != nil {
			slog.Warn("Vimeo download resolution failed", "url", link, "error", err)
			dlURL = link
		}
		files = append(files, File{URLs: []string{dlURL}, Mimetype: "application/x-vimeo"})
	}
	return files
}

// resolveDownloadURL fetches the watch page, extracts the player config
// URL and picks the highest ranked fileformat from the config JSON.
func (a *VimeoAdapter) resolveDownloadURL(ctx context.Context, watchURL string, opts *Options) (string, error) {
	videoID := VimeoVideoID(watchURL)
	if videoID == "" {
		return watchURL, nil
	}

	fetchOpts := urlstore.Options{UseCache: opts.UseCache}

	page, err := a.fetcher.Fetch(ctx, "http://vimeo.com/"+videoID, fetchOpts)
	if err != nil {
		return "", fmt.Errorf("fetch watch page: %w", err)
	}

	m := vimeoDataConfigRe.FindSubmatch(page.Content)
	if m == nil {
		return "", fmt.Errorf("no data config on watch page for video %s", videoID)
	}
	configURL := strings.ReplaceAll(string(m[1]), "&amp;", "&")

	configRes, err := a.fetcher.Fetch(ctx, configURL, fetchOpts)
	if err != nil {
		return "", fmt.Errorf("fetch player config: %w", err)
	}

	formats, err := vimeoFormatURLs(configRes.Content)
	if err != nil {
		return "", err
	}
	if len(formats) == 0 {
		return "", fmt.Errorf("no file formats for video %s", videoID)
	}

	var names []string
	for name := range formats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return vimeoFormatRank(names[i]) > vimeoFormatRank(names[j])
	})
	return formats[names[0]], nil
}

// vimeoFormatURLs extracts fileformat to URL pairs from the player
// config document (request.files.<fileinfo>.<fileformat>.url).
func vimeoFormatURLs(content []byte) (map[string]string, error) {
	var config struct {
		Request struct {
			Files map[string]json.RawMessage `json:"files"`
		} `json:"request"`
	}
	if err := json.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("decode player config: %w", err)
	}

	formats := make(map[string]string)
	for _, fileinfo := range config.Request.Files {
		var byFormat map[string]struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(fileinfo, &byFormat); err != nil {
			continue
		}
		for fileformat, keys := range byFormat {
			if keys.URL != "" {
				formats[fileformat] = keys.URL
			}
		}
	}
	return formats, nil
}

func vimeoFormatRank(fileformat string) int {
	for rank, name := range vimeoFormatRanking {
		if name == fileformat {
			return rank
		}
	}
	return 0
}
