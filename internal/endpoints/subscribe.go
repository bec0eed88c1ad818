package endpoints

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"feedsvc/internal/pubsub"
)

// Subscriber is the part of the hub subscriber the callbacks need.
type Subscriber interface {
	Verify(ctx context.Context, mode, topic, challenge, verifyToken string) (string, bool)
	Notify(ctx context.Context, feedURL string) error
}

// HandleSubscriptionVerify serves the hub's GET verification callback.
// The challenge is echoed back when the parameters match a pending
// subscription; everything else is a 404.
func HandleSubscriptionVerify(subscriber Subscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		challenge, ok := subscriber.Verify(c.Request.Context(),
			c.Query("hub.mode"),
			c.Query("hub.topic"),
			c.Query("hub.challenge"),
			c.Query("hub.verify_token"))
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.String(http.StatusOK, challenge)
	}
}

// HandleSubscriptionNotify serves the hub's POST update notification.
// The posted body is ignored; the feed named by the url parameter is
// refetched with an extended cache lifetime.
func HandleSubscriptionNotify(subscriber Subscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		feedURL := c.Query("url")
		if feedURL == "" {
			c.Status(http.StatusBadRequest)
			return
		}

		err := subscriber.Notify(c.Request.Context(), feedURL)
		if errors.Is(err, pubsub.ErrNotSubscribed) {
			c.Status(http.StatusBadRequest)
			return
		}
		if err != nil {
			slog.Error("Notification handling failed", "url", feedURL, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	}
}
