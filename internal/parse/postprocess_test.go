package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedFeed() *Feed {
	return &Feed{
		Episodes: []*Episode{
			{Title: "My Podcast 100 - The Beginning"},
			{Title: "My Podcast 101 - The Middle"},
			{Title: "My Podcast 102 - The End"},
		},
	}
}

func TestDeriveEpisodeTitles(t *testing.T) {
	t.Run("Numbers and short titles", func(t *testing.T) {
		feed := numberedFeed()
		deriveEpisodeTitles(feed)

		require.NotNil(t, feed.Episodes[0].Number)
		assert.Equal(t, 100, *feed.Episodes[0].Number)
		assert.Equal(t, 101, *feed.Episodes[1].Number)
		assert.Equal(t, 102, *feed.Episodes[2].Number)

		assert.Equal(t, "The Beginning", feed.Episodes[0].ShortTitle)
		assert.Equal(t, "The Middle", feed.Episodes[1].ShortTitle)
		assert.Equal(t, "The End", feed.Episodes[2].ShortTitle)
	})

	t.Run("No common title", func(t *testing.T) {
		feed := &Feed{Episodes: []*Episode{
			{Title: "Alpha"}, {Title: "Beta"}, {Title: "Gamma"},
		}}
		deriveEpisodeTitles(feed)
		assert.Nil(t, feed.Episodes[0].Number)
		assert.Empty(t, feed.Episodes[0].ShortTitle)
	})

	t.Run("Episodes without number", func(t *testing.T) {
		feed := &Feed{Episodes: []*Episode{
			{Title: "Daily News: Politics"},
			{Title: "Daily News: Sports"},
		}}
		deriveEpisodeTitles(feed)
		assert.Nil(t, feed.Episodes[0].Number)
		assert.Equal(t, "Politics", feed.Episodes[0].ShortTitle)
		assert.Equal(t, "Sports", feed.Episodes[1].ShortTitle)
	})
}

func TestSummarizeContentTypes(t *testing.T) {
	t.Run("Derived from files", func(t *testing.T) {
		feed := &Feed{Episodes: []*Episode{
			{Files: []File{{Mimetype: "audio/mpeg"}, {Mimetype: "audio/ogg"}}},
			{Files: []File{{Mimetype: "video/mp4"}}},
		}}
		assert.Equal(t, []string{"audio", "video"}, summarizeContentTypes(feed))
	})

	t.Run("Fixed types win", func(t *testing.T) {
		feed := &Feed{
			fixedContentTypes: []string{"video"},
			Episodes: []*Episode{
				{Files: []File{{Mimetype: "audio/mpeg"}}},
			},
		}
		assert.Equal(t, []string{"video"}, summarizeContentTypes(feed))
	})
}

func TestProcessFeedText(t *testing.T) {
	feed := &Feed{
		Title:       "Show <b>Title</b>",
		Description: "We talk<br/>a lot",
		Link:        "http://example.com/<keep>",
		Episodes: []*Episode{{
			Title:       "Ep <i>1</i>",
			Description: "first &amp; best",
			Link:        "http://example.com/1",
		}},
	}
	processFeedText(feed, &StripHTMLProcessor{})

	assert.Equal(t, "Show Title", feed.Title)
	assert.Equal(t, "We talk\na lot", feed.Description)
	// link-like fields are never processed
	assert.Equal(t, "http://example.com/<keep>", feed.Link)
	assert.Equal(t, "Ep 1", feed.Episodes[0].Title)
	assert.Equal(t, "first & best", feed.Episodes[0].Description)
	assert.Equal(t, "http://example.com/1", feed.Episodes[0].Link)
}

func TestFinishFeed(t *testing.T) {
	feed := numberedFeed()
	feed.Episodes[0].Files = []File{{Mimetype: "audio/mpeg"}}

	got := finishFeed(context.Background(), feed, &fakeFetcher{}, DefaultParseOptions())
	assert.Equal(t, []string{"audio"}, got.ContentTypes)
	require.NotNil(t, got.Episodes[0].Number)
	assert.Equal(t, 100, *got.Episodes[0].Number)
}
