package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXSPF = `<?xml version="1.0" encoding="UTF-8"?>
<playlist version="1" xmlns="http://xspf.org/ns/0/">
  <title>fm4 on demand</title>
  <trackList>
    <track>
      <title>Unlimited 2011-03-02</title>
      <location>http://loadfiles.orf.at/fm4/unlimited1.mp3</location>
    </track>
    <track>
      <title>Unlimited 2011-03-03</title>
      <location>http://loadfiles.orf.at/fm4/unlimited2.mp3</location>
    </track>
    <track>
      <title>No location</title>
    </track>
  </trackList>
</playlist>`

func TestFM4HandlesURL(t *testing.T) {
	a := NewFM4Adapter()
	assert.True(t, a.HandlesURL("http://onapp1.orf.at/webcam/fm4/fod/unlimited.xspf"))
	assert.False(t, a.HandlesURL("http://onapp1.orf.at/webcam/fm4/fod/unlimited.rss"))
	assert.False(t, a.HandlesURL("http://example.com/unlimited.xspf"))
}

func TestFM4Parse(t *testing.T) {
	adapter := NewFM4Adapter()

	t.Run("Known show", func(t *testing.T) {
		res := testResource("http://onapp1.orf.at/webcam/fm4/fod/unlimited.xspf", sampleXSPF)
		feed, err := adapter.Parse(context.Background(), res, DefaultParseOptions())
		require.NoError(t, err)

		assert.Equal(t, "FM4 Unlimited", feed.Title)
		assert.Equal(t, "http://fm4.orf.at/unlimited", feed.Link)
		assert.Equal(t, "Montag bis Freitag (14-15 Uhr)", feed.Description)
		assert.Equal(t, "http://onapp1.orf.at/webcam/fm4/fod/SOD_Bild_Unlimited.jpg", feed.Logo)

		require.Len(t, feed.Episodes, 2)
		ep := feed.Episodes[0]
		assert.Equal(t, "Unlimited 2011-03-02", ep.Title)
		assert.Equal(t, "http://loadfiles.orf.at/fm4/unlimited1.mp3", ep.GUID)
		require.Len(t, ep.Files, 1)
		assert.Equal(t, []string{"http://loadfiles.orf.at/fm4/unlimited1.mp3"}, ep.Files[0].URLs)
		assert.Equal(t, "audio/mpeg", ep.Files[0].Mimetype)
	})

	t.Run("Unknown show falls back to playlist title", func(t *testing.T) {
		res := testResource("http://onapp1.orf.at/webcam/fm4/fod/mystery.xspf", sampleXSPF)
		feed, err := adapter.Parse(context.Background(), res, DefaultParseOptions())
		require.NoError(t, err)

		assert.Equal(t, "fm4 on demand", feed.Title)
		assert.Equal(t, "http://fm4.orf.at/", feed.Link)
		assert.Equal(t, "XSPF playlist", feed.Description)
		assert.Empty(t, feed.Logo)
	})

	t.Run("Invalid document", func(t *testing.T) {
		res := testResource("http://onapp1.orf.at/webcam/fm4/fod/unlimited.xspf", "{}")
		_, err := adapter.Parse(context.Background(), res, DefaultParseOptions())
		assert.Error(t, err)
	})
}
