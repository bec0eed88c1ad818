package parse

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"feedsvc/internal/mimetype"
	"feedsvc/internal/urlstore"
)

// inlineLogo fetches the feed logo and embeds it as a data URI,
// optionally scaled and converted. Failures become a fetch-logo warning
// on the feed, never an error.
func inlineLogo(ctx context.Context, feed *Feed, fetcher Fetcher, opts *Options) {
	if feed.Logo == "" {
		return
	}

	res, err := fetcher.Fetch(ctx, feed.Logo, urlstore.Options{UseCache: opts.UseCache})
	if err != nil {
		feed.AddWarning("fetch-logo", fmt.Sprintf("could not fetch feed logo %s: %s", feed.Logo, err))
		return
	}

	content := res.Content
	mt := mimetype.Guess("", res.URL)

	if opts.ScaleLogo > 0 || opts.LogoFormat != "" {
		content, mt, err = TransformImage(content, mt, opts.ScaleLogo, opts.LogoFormat)
		if err != nil {
			feed.AddWarning("fetch-logo", fmt.Sprintf("could not transform feed logo %s: %s", feed.Logo, err))
			return
		}
	}

	feed.LogoData = dataURI(content, mt)
}

// TransformImage resizes and/or converts an image. size bounds the
// longer side in pixels while preserving the aspect ratio; 0 keeps the
// dimensions. format selects "png" or "jpeg"; empty keeps the input
// format where encodable and falls back to png otherwise. Transparency
// is composited onto white before JPEG encoding.
func TransformImage(content []byte, mt string, size int, format string) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	if format == "" {
		format = strings.TrimPrefix(mt, "image/")
		if format != "png" && format != "jpeg" {
			format = "png"
		}
	}

	if size > 0 {
		img = scaleImage(img, size)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, onWhite(img), nil); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("unsupported image format %q", format)
	}

	return buf.Bytes(), "image/" + format, nil
}

// scaleImage bounds the longer side to size pixels.
func scaleImage(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return img
	}

	longer := width
	if height > longer {
		longer = height
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width*size/longer, height*size/longer))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)
	return scaled
}

// onWhite composites the image onto a white background, dropping the
// alpha channel.
func onWhite(img image.Image) image.Image {
	background := image.NewRGBA(img.Bounds())
	xdraw.Draw(background, background.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(background, background.Bounds(), img, img.Bounds().Min, xdraw.Over)
	return background
}

func dataURI(content []byte, mt string) string {
	return fmt.Sprintf("data:%s;base64,%s", mt, base64.StdEncoding.EncodeToString(content))
}
