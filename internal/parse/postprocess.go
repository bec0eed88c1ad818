package parse

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"feedsvc/internal/mimetype"
)

var (
	episodeNumberRe  = regexp.MustCompile(`^\W*(\d+)`)
	shortTitlePrefix = regexp.MustCompile(`^[\W\d]+`)
)

// finishFeed runs the post-processing pipeline: text processing first,
// then the title derivations and the content-type summary, finally the
// optional logo inlining. Derivations see processed titles so numbering
// is not confused by markup.
func finishFeed(ctx context.Context, feed *Feed, fetcher Fetcher, opts *Options) *Feed {
	processFeedText(feed, opts.TextProcessor)
	deriveEpisodeTitles(feed)
	feed.ContentTypes = summarizeContentTypes(feed)
	if opts.InlineLogo {
		inlineLogo(ctx, feed, fetcher, opts)
	}
	return feed
}

// processFeedText applies the text processor to the free-text fields.
// Link-like fields (urls, link, new_location, logo, hub, flattr,
// license, etags) and identifiers are never processed.
func processFeedText(feed *Feed, processor TextProcessor) {
	if processor == nil {
		return
	}
	feed.Title = processor.Process(feed.Title)
	feed.Description = processor.Process(feed.Description)
	feed.Author = processor.Process(feed.Author)
	for _, episode := range feed.Episodes {
		episode.Title = processor.Process(episode.Title)
		episode.Description = processor.Process(episode.Description)
		episode.Content = processor.Process(episode.Content)
		episode.Author = processor.Process(episode.Author)
	}
}

// deriveEpisodeTitles computes the common title of the feed and, per
// episode, the number and the short title relative to it.
func deriveEpisodeTitles(feed *Feed) {
	titles := make([]string, 0, len(feed.Episodes))
	for _, episode := range feed.Episodes {
		titles = append(titles, episode.Title)
	}

	common := CommonTitle(titles)
	if common == "" {
		return
	}

	for _, episode := range feed.Episodes {
		if episode.Title == "" {
			continue
		}
		stripped := strings.TrimSpace(strings.ReplaceAll(episode.Title, common, ""))

		if m := episodeNumberRe.FindStringSubmatch(stripped); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				episode.Number = &n
			}
		}
		episode.ShortTitle = shortTitlePrefix.ReplaceAllString(stripped, "")
	}
}

// summarizeContentTypes collects the mimetypes of all files and reduces
// them to the podcast-level content types. Adapters with a fixed type
// (YouTube, Vimeo) override the derivation.
func summarizeContentTypes(feed *Feed) []string {
	if feed.fixedContentTypes != nil {
		return feed.fixedContentTypes
	}
	var mimetypes []string
	for _, episode := range feed.Episodes {
		for _, file := range episode.Files {
			mimetypes = append(mimetypes, file.Mimetype)
		}
	}
	return mimetype.PodcastTypes(mimetypes)
}
