package parse

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"

	"feedsvc/internal/mimetype"
	"feedsvc/internal/urlstore"
)

var fm4PlaylistRe = regexp.MustCompile(`^http://onapp1\.orf\.at/webcam/fm4/fod/([^/]+)\.xspf$`)

// fm4Show carries the fixed identity of an FM4 on-demand playlist; the
// XSPF documents themselves contain no usable feed metadata.
type fm4Show struct {
	Title       string
	Logo        string
	Link        string
	Description string
}

var fm4Shows = map[string]fm4Show{
	"spezialmusik": {
		Title:       "FM4 Sendungen",
		Logo:        "http://onapp1.orf.at/webcam/fm4/fod/SOD_Bild_Spezialmusik.jpg",
		Link:        "http://fm4.orf.at/",
		Description: "Sendungen jeweils sieben Tage zum Nachhören.",
	},
	"unlimited": {
		Title:       "FM4 Unlimited",
		Logo:        "http://onapp1.orf.at/webcam/fm4/fod/SOD_Bild_Unlimited.jpg",
		Link:        "http://fm4.orf.at/unlimited",
		Description: "Montag bis Freitag (14-15 Uhr)",
	},
	"soundpark": {
		Title:       "FM4 Soundpark",
		Logo:        "http://onapp1.orf.at/webcam/fm4/fod/SOD_Bild_Soundpark.jpg",
		Link:        "http://fm4.orf.at/soundpark",
		Description: "Nacht von Sonntag auf Montag (1-6 Uhr)",
	},
}

type xspfPlaylist struct {
	Title  string      `xml:"title"`
	Tracks []xspfTrack `xml:"trackList>track"`
}

type xspfTrack struct {
	Title    string `xml:"title"`
	Location string `xml:"location"`
}

// FM4Adapter parses the XSPF on-demand playlists of radio FM4. Each
// track becomes an episode with a single file; feed identity comes from
// the show table keyed on the playlist category in the URL.
type FM4Adapter struct{}

func NewFM4Adapter() *FM4Adapter { return &FM4Adapter{} }

func (a *FM4Adapter) Name() string { return "fm4" }

func (a *FM4Adapter) HandlesURL(url string) bool {
	return fm4PlaylistRe.MatchString(url)
}

func (a *FM4Adapter) Parse(ctx context.Context, res *urlstore.Resource, opts *Options) (*Feed, error) {
	var playlist xspfPlaylist
	decoder := xml.NewDecoder(bytes.NewReader(res.Content))
	decoder.Strict = false
	if err := decoder.Decode(&playlist); err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}

	show, ok := fm4Shows[fm4Category(requestedURL(res))]
	if !ok {
		show = fm4Show{
			Title:       playlist.Title,
			Link:        "http://fm4.orf.at/",
			Description: "XSPF playlist",
		}
	}

	feed := &Feed{
		Title:       show.Title,
		Link:        show.Link,
		Description: show.Description,
		Logo:        show.Logo,
		URLs:        res.URLs,
	}

	feed.Episodes = make([]*Episode, 0, len(playlist.Tracks))
	for _, track := range playlist.Tracks {
		if track.Location == "" {
			continue
		}
		feed.Episodes = append(feed.Episodes, &Episode{
			GUID:  track.Location,
			Title: track.Title,
			Files: []File{{
				URLs:     []string{track.Location},
				Mimetype: mimetype.Guess("", track.Location),
			}},
		})
	}
	return feed, nil
}

func fm4Category(url string) string {
	if m := fm4PlaylistRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}
