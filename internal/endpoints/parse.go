package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"feedsvc/internal/parse"
)

// FeedParser is the part of the parse service the endpoint needs.
type FeedParser interface {
	ParseBatch(ctx context.Context, urls []string, opts *parse.Options) []*parse.Feed
}

var supportedFormats = []string{"application/json", "text/html"}

// HandleParse serves GET and POST /parse: it normalizes the feeds given
// by the url parameters and responds with a JSON array of feed
// documents. With Accept: text/html the same JSON is served
// pretty-printed and escaped for a browser.
func HandleParse(parser FeedParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		urls := queryArray(c, "url")
		if len(urls) == 0 {
			c.String(http.StatusBadRequest, "parameter url missing")
			return
		}

		opts := parseOptions(c)
		feeds := parser.ParseBatch(c.Request.Context(), urls, opts)

		c.Header("Vary", "Accept, User-Agent, Accept-Encoding")
		if lastMod, ok := earliestLastModified(feeds); ok {
			c.Header("Last-Modified", lastMod.UTC().Format(http.TimeFormat))
		}

		accept := c.GetHeader("Accept")
		if accept == "" {
			accept = "application/json"
		}
		if selectMatchingOption(supportedFormats, accept) == "text/html" {
			writePrettyResponse(c, feeds)
			return
		}
		c.JSON(http.StatusOK, feeds)
	}
}

// parseOptions maps the request parameters onto parse options. The
// deprecated strip_html parameter acts as process_text=strip_html
// unless process_text is given explicitly.
func parseOptions(c *gin.Context) *parse.Options {
	opts := parse.DefaultParseOptions()

	opts.UseCache = boolParam(c, "use_cache", true)
	opts.InlineLogo = boolParam(c, "inline_logo", false)
	opts.LogoFormat = formValue(c, "logo_format")
	if scale, err := strconv.Atoi(formValue(c, "scale_logo")); err == nil && scale > 0 {
		opts.ScaleLogo = scale
	}

	if boolParam(c, "strip_html", false) {
		opts.TextProcessor = parse.GetTextProcessor("strip_html")
	}
	if name := formValue(c, "process_text"); name != "" {
		opts.TextProcessor = parse.GetTextProcessor(name)
	}

	if since := c.GetHeader("If-Modified-Since"); since != "" {
		if t, err := parseHTTPDate(since); err == nil {
			opts.ModifiedSince = t
		}
	}
	return opts
}

// earliestLastModified returns the earliest http_last_modified over all
// feeds that carry one.
func earliestLastModified(feeds []*parse.Feed) (time.Time, bool) {
	var earliest int64
	for _, feed := range feeds {
		if feed.HTTPLastModified == 0 {
			continue
		}
		if earliest == 0 || feed.HTTPLastModified < earliest {
			earliest = feed.HTTPLastModified
		}
	}
	if earliest == 0 {
		return time.Time{}, false
	}
	return time.Unix(earliest, 0), true
}

func writePrettyResponse(c *gin.Context, feeds []*parse.Feed) {
	// the HTML escaping happens once, below; the encoder must not
	// escape <, > and & a second time into \uXXXX sequences
	var pretty bytes.Buffer
	enc := json.NewEncoder(&pretty)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(feeds); err != nil {
		c.String(http.StatusInternalServerError, "could not serialize response")
		return
	}
	body := fmt.Sprintf(
		"<!DOCTYPE html>\n<html><head><title>mygpo-feedservice</title></head>"+
			"<body><pre>%s</pre></body></html>",
		html.EscapeString(strings.TrimRight(pretty.String(), "\n")))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// queryArray collects a repeatable parameter from the query string and,
// for POST requests, the form body.
func queryArray(c *gin.Context, key string) []string {
	values := c.QueryArray(key)
	if c.Request.Method == http.MethodPost {
		values = append(values, c.PostFormArray(key)...)
	}
	return values
}

func formValue(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}

func boolParam(c *gin.Context, key string, defaultValue bool) bool {
	value := formValue(c, key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseHTTPDate accepts both RFC 1123 and the looser RFC 2822 shapes
// that feed clients send.
func parseHTTPDate(value string) (time.Time, error) {
	if t, err := http.ParseTime(value); err == nil {
		return t, nil
	}
	return mail.ParseDate(value)
}
