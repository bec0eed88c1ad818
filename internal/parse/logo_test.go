package parse

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsvc/internal/urlstore"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransformImage(t *testing.T) {
	t.Run("Scale bounds the longer side", func(t *testing.T) {
		content, mt, err := TransformImage(testPNG(t, 100, 50), "image/png", 40, "")
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt)

		img, _, err := image.Decode(bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, 40, img.Bounds().Dx())
		assert.Equal(t, 20, img.Bounds().Dy())
	})

	t.Run("Convert to jpeg", func(t *testing.T) {
		content, mt, err := TransformImage(testPNG(t, 10, 10), "image/png", 0, "jpeg")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mt)

		_, format, err := image.Decode(bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("Unknown input format falls back to png", func(t *testing.T) {
		_, mt, err := TransformImage(testPNG(t, 4, 4), "image/x-obscure", 0, "")
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt)
	})

	t.Run("Garbage input", func(t *testing.T) {
		_, _, err := TransformImage([]byte("not an image"), "image/png", 0, "")
		assert.Error(t, err)
	})
}

func TestInlineLogo(t *testing.T) {
	logoURL := "http://example.com/logo.png"

	t.Run("Embeds data URI", func(t *testing.T) {
		res := &urlstore.Resource{URL: logoURL, URLs: []string{logoURL}, Content: testPNG(t, 8, 8)}
		fetcher := &fakeFetcher{resources: map[string]*urlstore.Resource{logoURL: res}}

		feed := &Feed{Logo: logoURL}
		opts := DefaultParseOptions()
		opts.InlineLogo = true
		inlineLogo(context.Background(), feed, fetcher, opts)

		assert.True(t, strings.HasPrefix(feed.LogoData, "data:image/png;base64,"))
		assert.Empty(t, feed.Warnings)
	})

	t.Run("Fetch failure becomes warning", func(t *testing.T) {
		feed := &Feed{Logo: "http://example.com/missing.png"}
		opts := DefaultParseOptions()
		opts.InlineLogo = true
		inlineLogo(context.Background(), feed, &fakeFetcher{}, opts)

		assert.Empty(t, feed.LogoData)
		assert.Contains(t, feed.Warnings["fetch-logo"], "could not fetch feed logo")
	})

	t.Run("No logo is a no-op", func(t *testing.T) {
		feed := &Feed{}
		opts := DefaultParseOptions()
		opts.InlineLogo = true
		inlineLogo(context.Background(), feed, &fakeFetcher{}, opts)
		assert.Empty(t, feed.LogoData)
		assert.Empty(t, feed.Warnings)
	})
}
