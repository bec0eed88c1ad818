package endpoints

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AllowedHostsMiddleware rejects requests whose Host header is not in
// the configured list. An entry starting with a dot matches any
// subdomain. An empty list allows everything.
func AllowedHostsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}

		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.ToLower(host)

		for _, a := range allowed {
			a = strings.ToLower(a)
			if host == a || (strings.HasPrefix(a, ".") && strings.HasSuffix(host, a)) {
				c.Next()
				return
			}
		}

		slog.Warn("Request for disallowed host", "host", host)
		c.String(http.StatusBadRequest, "invalid host header")
		c.Abort()
	}
}
