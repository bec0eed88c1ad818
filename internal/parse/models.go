// Package parse turns fetched feed resources into normalized podcast
// documents. A dispatcher selects the first source adapter whose URL
// predicate matches; the generic RSS/Atom adapter is the fallback.
package parse

import "time"

// Feed is the normalized representation of one podcast feed.
type Feed struct {
	Title       string   `json:"title,omitempty"`
	Link        string   `json:"link,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Language    string   `json:"language,omitempty"`
	URLs        []string `json:"urls"`
	// NewLocation is the permanent redirect target of the feed, either
	// from HTTP 301 or from a <newLocation> element.
	NewLocation string   `json:"new_location,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	LogoData    string   `json:"logo_data,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Hub         string   `json:"hub,omitempty"`
	Flattr      string   `json:"flattr,omitempty"`
	License     string   `json:"license,omitempty"`

	HTTPLastModified int64  `json:"http_last_modified,omitempty"`
	HTTPETag         string `json:"http_etag,omitempty"`

	// ContentTypes is derived from the episode files, never set by the
	// caller.
	ContentTypes []string   `json:"content_types,omitempty"`
	Episodes     []*Episode `json:"episodes"`

	Errors   map[string]string `json:"errors,omitempty"`
	Warnings map[string]string `json:"warnings,omitempty"`

	// fixedContentTypes overrides derivation for adapters that know the
	// content type regardless of file classification (YouTube, Vimeo).
	fixedContentTypes []string
}

// AddError records a feed-level error. One message per key.
func (f *Feed) AddError(key, msg string) {
	if f.Errors == nil {
		f.Errors = make(map[string]string)
	}
	f.Errors[key] = msg
}

// AddWarning records a feed-level warning. One message per key.
func (f *Feed) AddWarning(key, msg string) {
	if f.Warnings == nil {
		f.Warnings = make(map[string]string)
	}
	f.Warnings[key] = msg
}

// Episode is one item of a feed.
type Episode struct {
	GUID        string `json:"guid,omitempty"`
	Title       string `json:"title,omitempty"`
	ShortTitle  string `json:"short_title,omitempty"`
	Number      *int   `json:"number,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	Link        string `json:"link,omitempty"`
	Author      string `json:"author,omitempty"`
	// Duration in seconds.
	Duration int    `json:"duration,omitempty"`
	Language string `json:"language,omitempty"`
	// Released is the publication time in unix seconds. Absent for
	// pre-1970 or missing dates.
	Released *int64 `json:"released,omitempty"`
	Files    []File `json:"files"`
	Flattr   string `json:"flattr,omitempty"`
}

// File is one media reference within an episode.
type File struct {
	URLs     []string `json:"urls"`
	Mimetype string   `json:"mimetype,omitempty"`
	Filesize int64    `json:"filesize,omitempty"`
}

// stubFeed carries a fetch error for a URL that could not be parsed.
func stubFeed(url string, err error) *Feed {
	feed := &Feed{URLs: []string{url}, Episodes: []*Episode{}}
	feed.AddError("fetch-feed", "could not fetch feed "+url+": "+err.Error())
	return feed
}

func unixTimestamp(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ts := t.Unix()
	if ts < 0 {
		return nil
	}
	return &ts
}
