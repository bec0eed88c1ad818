package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"feedsvc/internal/mimetype"
	"feedsvc/internal/urlstore"
)

const soundcloudAPI = "http://api.soundcloud.com"

var (
	soundcloudUserRe = regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?soundcloud\.com/([^/]+)$`)
	soundcloudFavRe  = regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?soundcloud\.com/([^/]+)/favorites$`)
)

// SoundcloudError aggregates the error messages of an API response.
type SoundcloudError struct {
	Messages []string
}

func (e *SoundcloudError) Error() string {
	return "soundcloud: " + strings.Join(e.Messages, ";")
}

// SoundcloudAdapter builds a feed from a Soundcloud user's tracks via
// the JSON API. The favorites variant lists the tracks a user has
// favorited instead. Identity fields are templated from the username;
// the API consumer key never appears in surfaced URLs.
type SoundcloudAdapter struct {
	fetcher     Fetcher
	consumerKey string
	favorites   bool
}

func NewSoundcloudAdapter(fetcher Fetcher, consumerKey string) *SoundcloudAdapter {
	return &SoundcloudAdapter{fetcher: fetcher, consumerKey: consumerKey}
}

func NewSoundcloudFavAdapter(fetcher Fetcher, consumerKey string) *SoundcloudAdapter {
	return &SoundcloudAdapter{fetcher: fetcher, consumerKey: consumerKey, favorites: true}
}

func (a *SoundcloudAdapter) Name() string {
	if a.favorites {
		return "soundcloud-favorites"
	}
	return "soundcloud"
}

func (a *SoundcloudAdapter) HandlesURL(url string) bool {
	return a.username(url) != ""
}

func (a *SoundcloudAdapter) username(url string) string {
	re := soundcloudUserRe
	if a.favorites {
		re = soundcloudFavRe
	}
	if m := re.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func (a *SoundcloudAdapter) Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error) {
	username := a.username(requestedURL(res))
	if username == "" {
		return nil, fmt.Errorf("not a soundcloud user url: %s", requestedURL(res))
	}

	feed := &Feed{
		Author: username,
		URLs:   res.URLs,
	}
	if a.favorites {
		feed.Title = fmt.Sprintf("%s's favorites on Soundcloud", username)
		feed.Link = fmt.Sprintf("http://soundcloud.com/%s/favorites", username)
		feed.Description = fmt.Sprintf("Tracks favorited by %s on Soundcloud.", username)
	} else {
		feed.Title = fmt.Sprintf("%s on Soundcloud", username)
		feed.Link = fmt.Sprintf("http://soundcloud.com/%s", username)
		feed.Description = fmt.Sprintf("Tracks published by %s on Soundcloud.", username)
	}

	if logo, err := a.avatarURL(ctx, username, opts); err == nil {
		feed.Logo = logo
	}

	tracks, err := a.tracks(ctx, username, opts)
	if err != nil {
		return nil, err
	}

	feed.Episodes = make([]*Episode, 0, len(tracks))
	for _, track := range tracks {
		feed.Episodes = append(feed.Episodes, a.trackEpisode(track, username))
	}
	return feed, nil
}

type soundcloudTrack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Permalink    string `json:"permalink"`
	PermalinkURL string `json:"permalink_url"`
	Description  string `json:"description"`
	Downloadable bool   `json:"downloadable"`
	StreamURL    string `json:"stream_url"`
	DownloadURL  string `json:"download_url"`
	CreatedAt    string `json:"created_at"`
}

func (a *SoundcloudAdapter) avatarURL(ctx context.Context, username string, opts *Options) (string, error) {
	content, err := a.apiGet(ctx, fmt.Sprintf("%s/users/%s.json?consumer_key=%s",
		soundcloudAPI, url.PathEscape(username), url.QueryEscape(a.consumerKey)), opts)
	if err != nil {
		return "", err
	}
	var user struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(content, &user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}
	return user.AvatarURL, nil
}

func (a *SoundcloudAdapter) tracks(ctx context.Context, username string, opts *Options) ([]soundcloudTrack, error) {
	resource := "tracks"
	if a.favorites {
		resource = "favorites"
	}
	apiURL := fmt.Sprintf("%s/users/%s/%s.json?filter=downloadable&consumer_key=%s&limit=200",
		soundcloudAPI, url.PathEscape(username), resource, url.QueryEscape(a.consumerKey))

	content, err := a.apiGet(ctx, apiURL, opts)
	if err != nil {
		return nil, err
	}

	var tracks []soundcloudTrack
	if err := json.Unmarshal(content, &tracks); err != nil {
		if scErr := decodeSoundcloudErrors(content); scErr != nil {
			return nil, scErr
		}
		return nil, fmt.Errorf("decode tracks: %w", err)
	}

	downloadable := tracks[:0]
	for _, track := range tracks {
		if track.Downloadable {
			downloadable = append(downloadable, track)
		}
	}
	return downloadable, nil
}

func (a *SoundcloudAdapter) apiGet(ctx context.Context, apiURL string, opts *Options) ([]byte, error) {
	res, err := a.fetcher.Fetch(ctx, apiURL, urlstore.Options{UseCache: opts.UseCache})
	if err != nil {
		return nil, err
	}
	return res.Content, nil
}

func (a *SoundcloudAdapter) trackEpisode(track soundcloudTrack, username string) *Episode {
	episode := &Episode{
		GUID:        track.Permalink,
		Title:       track.Title,
		Link:        track.PermalinkURL,
		Author:      username,
		Description: track.Description,
	}
	if episode.GUID == "" && track.ID != 0 {
		episode.GUID = fmt.Sprintf("%d", track.ID)
	}
	if episode.Title == "" {
		episode.Title = track.Permalink
	}
	if episode.Title == "" {
		episode.Title = "Unknown track"
	}
	if episode.Link == "" {
		episode.Link = "http://soundcloud.com/" + username
	}
	if episode.Description == "" {
		episode.Description = "No description available"
	}

	if released, err := parseSoundcloudDate(track.CreatedAt); err == nil {
		ts := released.Unix()
		episode.Released = &ts
	}

	// stream URL (MP3) preferred, download URL as fallback
	trackURL := track.StreamURL
	if trackURL == "" {
		trackURL = track.DownloadURL
	}
	if trackURL != "" {
		trackURL = stripConsumerKey(trackURL)
		mt := mimetype.Guess("", trackURL)
		if mt == "" {
			mt = "audio/mpeg"
		}
		episode.Files = []File{{URLs: []string{trackURL}, Mimetype: mt}}
	}
	return episode
}

// parseSoundcloudDate parses the API's "2009/11/03 13:37:00" shape.
func parseSoundcloudDate(value string) (time.Time, error) {
	value = strings.TrimSuffix(strings.TrimSpace(value), " +0000")
	return time.Parse("2006/01/02 15:04:05", value)
}

// stripConsumerKey removes the consumer_key query parameter so the API
// credential never leaks into client-visible URLs.
func stripConsumerKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := u.Query()
	if _, ok := query["consumer_key"]; !ok {
		return rawURL
	}
	query.Del("consumer_key")
	u.RawQuery = query.Encode()
	return u.String()
}

// decodeSoundcloudErrors maps an API error document onto a
// SoundcloudError, or returns nil when the content is no such document.
func decodeSoundcloudErrors(content []byte) *SoundcloudError {
	var doc struct {
		Errors []struct {
			ErrorMessage string `json:"error_message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(content, &doc); err != nil || len(doc.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(doc.Errors))
	for _, e := range doc.Errors {
		messages = append(messages, e.ErrorMessage)
	}
	return &SoundcloudError{Messages: messages}
}
