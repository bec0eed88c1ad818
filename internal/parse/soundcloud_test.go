package parse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsvc/internal/urlstore"
)

const scTracksJSON = `[
	{"id": 1, "title": "First Track", "permalink": "first-track",
	 "permalink_url": "http://soundcloud.com/dj/first-track",
	 "description": "opener", "downloadable": true,
	 "stream_url": "http://api.soundcloud.com/tracks/1/stream?consumer_key=sekrit",
	 "created_at": "2011/03/01 12:00:00 +0000"},
	{"id": 2, "title": "Not Downloadable", "permalink": "hidden",
	 "downloadable": false,
	 "stream_url": "http://api.soundcloud.com/tracks/2/stream"},
	{"id": 3, "permalink": "untitled", "downloadable": true,
	 "download_url": "http://api.soundcloud.com/tracks/3/download"}
]`

func soundcloudFetcher(userJSON, tracksPath, tracksJSON string) *fakeFetcher {
	return &fakeFetcher{resources: map[string]*urlstore.Resource{
		"http://api.soundcloud.com/users/dj.json?consumer_key=sekrit": testResource(
			"user", userJSON),
		"http://api.soundcloud.com/users/dj/" + tracksPath + ".json?filter=downloadable&consumer_key=sekrit&limit=200": testResource(
			"tracks", tracksJSON),
	}}
}

func TestSoundcloudHandlesURL(t *testing.T) {
	tracks := NewSoundcloudAdapter(nil, "")
	favs := NewSoundcloudFavAdapter(nil, "")

	assert.True(t, tracks.HandlesURL("http://soundcloud.com/dj"))
	assert.True(t, tracks.HandlesURL("https://www.soundcloud.com/dj"))
	assert.False(t, tracks.HandlesURL("http://soundcloud.com/dj/favorites"))
	assert.False(t, tracks.HandlesURL("http://example.com/dj"))

	assert.True(t, favs.HandlesURL("http://soundcloud.com/dj/favorites"))
	assert.False(t, favs.HandlesURL("http://soundcloud.com/dj"))
}

func TestSoundcloudParse(t *testing.T) {
	fetcher := soundcloudFetcher(
		`{"avatar_url": "http://i1.sndcdn.com/avatar.jpg"}`, "tracks", scTracksJSON)
	adapter := NewSoundcloudAdapter(fetcher, "sekrit")

	feed, err := adapter.Parse(context.Background(),
		testResource("http://soundcloud.com/dj", ""), DefaultParseOptions())
	require.NoError(t, err)

	t.Run("Identity from username", func(t *testing.T) {
		assert.Equal(t, "dj on Soundcloud", feed.Title)
		assert.Equal(t, "http://soundcloud.com/dj", feed.Link)
		assert.Equal(t, "Tracks published by dj on Soundcloud.", feed.Description)
		assert.Equal(t, "dj", feed.Author)
		assert.Equal(t, "http://i1.sndcdn.com/avatar.jpg", feed.Logo)
	})

	t.Run("Only downloadable tracks", func(t *testing.T) {
		require.Len(t, feed.Episodes, 2)
		assert.Equal(t, "First Track", feed.Episodes[0].Title)
		assert.Equal(t, "untitled", feed.Episodes[1].Title)
	})

	t.Run("Consumer key stripped from urls", func(t *testing.T) {
		ep := feed.Episodes[0]
		require.Len(t, ep.Files, 1)
		assert.Equal(t, []string{"http://api.soundcloud.com/tracks/1/stream"}, ep.Files[0].URLs)
		assert.Equal(t, "audio/mpeg", ep.Files[0].Mimetype)
	})

	t.Run("Released from created_at", func(t *testing.T) {
		ep := feed.Episodes[0]
		require.NotNil(t, ep.Released)
		want := time.Date(2011, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
		assert.Equal(t, want, *ep.Released)
	})

	t.Run("Download URL fallback", func(t *testing.T) {
		ep := feed.Episodes[1]
		require.Len(t, ep.Files, 1)
		assert.Equal(t, []string{"http://api.soundcloud.com/tracks/3/download"}, ep.Files[0].URLs)
	})
}

func TestSoundcloudFavParse(t *testing.T) {
	fetcher := soundcloudFetcher(`{}`, "favorites", `[]`)
	adapter := NewSoundcloudFavAdapter(fetcher, "sekrit")

	feed, err := adapter.Parse(context.Background(),
		testResource("http://soundcloud.com/dj/favorites", ""), DefaultParseOptions())
	require.NoError(t, err)

	assert.Equal(t, "dj's favorites on Soundcloud", feed.Title)
	assert.Equal(t, "http://soundcloud.com/dj/favorites", feed.Link)
	assert.Equal(t, "Tracks favorited by dj on Soundcloud.", feed.Description)
	assert.Empty(t, feed.Episodes)
}

func TestSoundcloudAPIError(t *testing.T) {
	errorDoc := `{"errors":[{"error_message":"401 - Unauthorized"},{"error_message":"invalid key"}]}`
	fetcher := soundcloudFetcher(`{}`, "tracks", errorDoc)
	adapter := NewSoundcloudAdapter(fetcher, "sekrit")

	_, err := adapter.Parse(context.Background(),
		testResource("http://soundcloud.com/dj", ""), DefaultParseOptions())
	require.Error(t, err)

	var scErr *SoundcloudError
	require.ErrorAs(t, err, &scErr)
	assert.Equal(t, "soundcloud: 401 - Unauthorized;invalid key", scErr.Error())
}

func TestParseSoundcloudDate(t *testing.T) {
	parsed, err := parseSoundcloudDate("2009/11/03 13:37:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2009, 11, 3, 13, 37, 0, 0, time.UTC), parsed)

	_, err = parseSoundcloudDate("yesterday")
	assert.Error(t, err)
}

func TestStripConsumerKey(t *testing.T) {
	assert.Equal(t, "http://example.com/s?x=1",
		stripConsumerKey("http://example.com/s?consumer_key=abc&x=1"))
	assert.Equal(t, "http://example.com/s",
		stripConsumerKey("http://example.com/s"))
}
