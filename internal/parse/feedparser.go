package parse

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"feedsvc/internal/mimetype"
	"feedsvc/internal/urlstore"
)

// RedirectResolver expands a media URL into its redirect chain. The
// generic adapter uses it for enclosure URLs when configured; adapters
// without a resolver emit single-element URL lists.
type RedirectResolver interface {
	RedirectChain(ctx context.Context, url string) ([]string, error)
}

// FeedparserAdapter is the generic RSS/Atom adapter and the fallback of
// the dispatcher. Source adapters reuse its extraction for everything
// they do not override.
type FeedparserAdapter struct {
	resolver RedirectResolver
}

func NewFeedparserAdapter(resolver RedirectResolver) *FeedparserAdapter {
	return &FeedparserAdapter{resolver: resolver}
}

func (a *FeedparserAdapter) Name() string { return "feedparser" }

// HandlesURL accepts everything; the adapter must be last in the
// dispatcher order.
func (a *FeedparserAdapter) HandlesURL(string) bool { return true }

func (a *FeedparserAdapter) Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error) {
	feed, _, err := a.parseDocument(ctx, res)
	return feed, err
}

// parseDocument parses the resource and returns both the normalized
// feed and the underlying document, so source adapters can post-edit
// episodes against the raw items.
func (a *FeedparserAdapter) parseDocument(ctx context.Context, res *urlstore.Resource) (*Feed, *gofeed.Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(res.Content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed: %w", err)
	}
	return a.buildFeed(ctx, res, parsed), parsed, nil
}

// buildFeed maps the parsed document and the fetch metadata onto the
// normalized model.
func (a *FeedparserAdapter) buildFeed(ctx context.Context, res *urlstore.Resource, parsed *gofeed.Feed) *Feed {
	links := scanFeedLinks(res.Content)

	feed := &Feed{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
		URLs:        res.URLs,
		Hub:         links.Hub,
		Flattr:      links.Flattr,
		License:     links.License,
		HTTPETag:    res.ETag,
	}

	if !res.LastModifiedUpstream.IsZero() {
		feed.HTTPLastModified = res.LastModifiedUpstream.Unix()
	}

	if feed.Description == "" && parsed.ITunesExt != nil {
		feed.Description = parsed.ITunesExt.Subtitle
	}

	if parsed.Author != nil {
		feed.Author = parsed.Author.Name
	}
	if feed.Author == "" && parsed.ITunesExt != nil {
		feed.Author = parsed.ITunesExt.Author
	}

	if parsed.Image != nil && parsed.Image.URL != "" {
		feed.Logo = urlstore.URLFix(parsed.Image.URL)
	} else if parsed.ITunesExt != nil && parsed.ITunesExt.Image != "" {
		feed.Logo = urlstore.URLFix(parsed.ITunesExt.Image)
	}

	feed.NewLocation = res.PermanentRedirect
	if feed.NewLocation == "" {
		feed.NewLocation = links.NewLocation
	}

	feed.Tags = feedTags(parsed.Categories)

	feed.Episodes = make([]*Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		feed.Episodes = append(feed.Episodes, a.buildEpisode(ctx, item))
	}

	return feed
}

func (a *FeedparserAdapter) buildEpisode(ctx context.Context, item *gofeed.Item) *Episode {
	episode := &Episode{
		GUID:    item.GUID,
		Title:   item.Title,
		Link:    item.Link,
		Content: item.Content,
		Flattr:  extLink(item.Extensions, "payment"),
	}

	if item.Author != nil {
		episode.Author = item.Author.Name
	}
	if episode.Author == "" && item.ITunesExt != nil {
		episode.Author = item.ITunesExt.Author
	}

	// first non-empty of summary, subtitle, link
	episode.Description = item.Description
	if episode.Description == "" && item.ITunesExt != nil {
		episode.Description = item.ITunesExt.Subtitle
	}
	if episode.Description == "" {
		episode.Description = item.Link
	}

	if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
		if duration, err := ParseTime(item.ITunesExt.Duration); err == nil {
			episode.Duration = duration
		}
	}

	released := item.UpdatedParsed
	if released == nil {
		released = item.PublishedParsed
	}
	episode.Released = unixTimestamp(released)

	episode.Files = a.episodeFiles(ctx, item)
	return episode
}

// episodeFiles collects media references in first-occurrence order:
// enclosures, then media:content entries, then links recognized as
// YouTube or Vimeo watch URLs. Files that classify as none are dropped
// and duplicate URL lists keep their first occurrence.
func (a *FeedparserAdapter) episodeFiles(ctx context.Context, item *gofeed.Item) []File {
	files := make([]File, 0, len(item.Enclosures))
	seen := make(map[string]bool)

	add := func(f File) {
		if mimetype.Type(f.Mimetype) == "" {
			return
		}
		key := strings.Join(f.URLs, "\n")
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, f)
	}

	for _, enclosure := range item.Enclosures {
		if enclosure.URL == "" {
			continue
		}
		f := File{
			URLs:     a.mediaURLs(ctx, enclosure.URL),
			Mimetype: mimetype.Guess(enclosure.Type, enclosure.URL),
		}
		if size, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
			f.Filesize = size
		}
		add(f)
	}

	for _, media := range item.Extensions["media"]["content"] {
		url := media.Attrs["url"]
		if url == "" {
			continue
		}
		add(File{
			URLs:     a.mediaURLs(ctx, url),
			Mimetype: mimetype.Guess(media.Attrs["type"], url),
		})
	}

	for _, link := range itemLinks(item) {
		if IsYoutubeVideoLink(link) {
			add(File{URLs: []string{link}, Mimetype: "application/x-youtube"})
		} else if IsVimeoVideoLink(link) {
			add(File{URLs: []string{link}, Mimetype: "application/x-vimeo"})
		}
	}

	return files
}

// mediaURLs returns the redirect chain of a media URL when a resolver
// is configured, and the bare URL otherwise. Resolution failures fall
// back to the bare URL; a broken mirror should not drop the file.
func (a *FeedparserAdapter) mediaURLs(ctx context.Context, url string) []string {
	if a.resolver == nil {
		return []string{url}
	}
	chain, err := a.resolver.RedirectChain(ctx, url)
	if err != nil || len(chain) == 0 {
		return []string{url}
	}
	return chain
}

func itemLinks(item *gofeed.Item) []string {
	links := item.Links
	if len(links) == 0 && item.Link != "" {
		links = []string{item.Link}
	}
	return links
}

// feedTags splits comma-separated category terms and deduplicates them,
// preserving first-occurrence order.
func feedTags(categories []string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, category := range categories {
		for _, tag := range strings.Split(category, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
