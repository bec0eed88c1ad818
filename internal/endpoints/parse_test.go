package endpoints

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsvc/internal/parse"
)

// captureParser records the arguments of the last ParseBatch call and
// returns canned feeds.
type captureParser struct {
	urls  []string
	opts  *parse.Options
	feeds []*parse.Feed
}

func (p *captureParser) ParseBatch(_ context.Context, urls []string, opts *parse.Options) []*parse.Feed {
	p.urls = urls
	p.opts = opts
	if p.feeds == nil {
		return []*parse.Feed{}
	}
	return p.feeds
}

func parseRouter(parser FeedParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/parse", HandleParse(parser))
	router.POST("/parse", HandleParse(parser))
	return router
}

func TestHandleParse(t *testing.T) {
	t.Run("Missing url parameter", func(t *testing.T) {
		router := parseRouter(&captureParser{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/parse", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "parameter url missing", w.Body.String())
	})

	t.Run("JSON array response", func(t *testing.T) {
		parser := &captureParser{feeds: []*parse.Feed{
			{Title: "A", URLs: []string{"http://example.com/a.xml"}},
			{Title: "B", URLs: []string{"http://example.com/b.xml"}},
		}}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET",
			"/parse?url=http%3A%2F%2Fexample.com%2Fa.xml&url=http%3A%2F%2Fexample.com%2Fb.xml", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"http://example.com/a.xml", "http://example.com/b.xml"}, parser.urls)
		assert.Equal(t, "Accept, User-Agent, Accept-Encoding", w.Header().Get("Vary"))

		var feeds []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feeds))
		require.Len(t, feeds, 2)
		assert.Equal(t, "A", feeds[0]["title"])
	})

	t.Run("Parameters map to options", func(t *testing.T) {
		parser := &captureParser{}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET",
			"/parse?url=http://example.com/feed.xml&inline_logo=1&scale_logo=64"+
				"&logo_format=jpeg&process_text=strip_html&use_cache=0", nil)
		router.ServeHTTP(w, req)

		require.NotNil(t, parser.opts)
		assert.True(t, parser.opts.InlineLogo)
		assert.Equal(t, 64, parser.opts.ScaleLogo)
		assert.Equal(t, "jpeg", parser.opts.LogoFormat)
		assert.False(t, parser.opts.UseCache)
		assert.IsType(t, &parse.StripHTMLProcessor{}, parser.opts.TextProcessor)
	})

	t.Run("Deprecated strip_html parameter", func(t *testing.T) {
		parser := &captureParser{}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/parse?url=http://example.com/feed.xml&strip_html=1", nil)
		router.ServeHTTP(w, req)

		assert.IsType(t, &parse.StripHTMLProcessor{}, parser.opts.TextProcessor)
	})

	t.Run("If-Modified-Since forwarded", func(t *testing.T) {
		parser := &captureParser{}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/parse?url=http://example.com/feed.xml", nil)
		req.Header.Set("If-Modified-Since", "Tue, 05 Jan 2016 10:00:00 GMT")
		router.ServeHTTP(w, req)

		want := time.Date(2016, 1, 5, 10, 0, 0, 0, time.UTC)
		assert.True(t, parser.opts.ModifiedSince.Equal(want))
	})

	t.Run("Last-Modified from earliest feed", func(t *testing.T) {
		early := time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)
		late := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
		parser := &captureParser{feeds: []*parse.Feed{
			{Title: "Late", HTTPLastModified: late.Unix()},
			{Title: "Early", HTTPLastModified: early.Unix()},
			{Title: "None"},
		}}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/parse?url=http://example.com/feed.xml", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, early.Format(http.TimeFormat), w.Header().Get("Last-Modified"))
	})

	t.Run("HTML rendering on Accept", func(t *testing.T) {
		parser := &captureParser{feeds: []*parse.Feed{
			{Title: "A <b>show</b>"},
		}}
		router := parseRouter(parser)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/parse?url=http://example.com/feed.xml", nil)
		req.Header.Set("Accept", "text/html, application/json;q=0.5")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "&lt;b&gt;show&lt;/b&gt;")
		assert.NotContains(t, w.Body.String(), "<b>show</b>")
	})

	t.Run("POST form body", func(t *testing.T) {
		parser := &captureParser{}
		router := parseRouter(parser)

		form := url.Values{"url": {"http://example.com/feed.xml"}}
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/parse", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"http://example.com/feed.xml"}, parser.urls)
	})
}

func TestSelectMatchingOption(t *testing.T) {
	supported := []string{"application/json", "text/html"}

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"Default json", "application/json", "application/json"},
		{"Prefers html", "text/html", "text/html"},
		{"Quality ordering", "text/html;q=0.4, application/json;q=0.8", "application/json"},
		{"Unknown falls back to first", "application/xml", "application/json"},
		{"Wildcard", "*/*", "application/json"},
		{"Wildcard forbidden", "*;q=0", ""},
		{"Zero quality skipped", "text/html;q=0, application/json", "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectMatchingOption(supported, tt.accept))
		})
	}
}
