package endpoints

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, parser FeedParser, subscriber Subscriber, flattrThing string) {
	r.GET("/", HandleIndex(flattrThing))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "feedservice",
		})
	})

	r.GET("/parse", HandleParse(parser))
	r.POST("/parse", HandleParse(parser))

	r.GET("/subscribe", HandleSubscriptionVerify(subscriber))
	r.POST("/subscribe", HandleSubscriptionNotify(subscriber))
}

// HandleIndex serves a minimal landing page describing the service.
func HandleIndex(flattrThing string) gin.HandlerFunc {
	return func(c *gin.Context) {
		flattr := ""
		if flattrThing != "" {
			flattr = fmt.Sprintf(
				`<p><a href="https://flattr.com/thing/%s">Flattr this service</a></p>`,
				flattrThing)
		}
		body := fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>mygpo-feedservice</title></head><body>
<h1>mygpo-feedservice</h1>
<p>Parses podcast feeds and returns their content as JSON.
Try <code>/parse?url=&lt;feed-url&gt;</code>.</p>
%s</body></html>`, flattr)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
	}
}
