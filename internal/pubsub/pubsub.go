package pubsub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedsvc/internal/config"
	"feedsvc/internal/urlstore"
)

// IncreasedExpiry is the cache lifetime of subscribed feeds. The hub
// notifies us about changes, so subscribed feeds can be cached much
// longer than unsubscribed ones.
const IncreasedExpiry = 7 * 24 * time.Hour

const modeSubscribe = "subscribe"

// ErrNotSubscribed is returned by Notify for URLs without a verified
// subscription.
var ErrNotSubscribed = errors.New("pubsub: no verified subscription")

// SubscriptionError reports a hub that rejected a subscription request.
type SubscriptionError struct {
	Hub  string
	Code int
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription not accepted by hub %s: HTTP %d", e.Hub, e.Code)
}

// Refetcher refreshes a cached feed with an extended lifetime.
type Refetcher interface {
	Refetch(ctx context.Context, url string, extraTTL time.Duration) (*urlstore.Resource, error)
}

// Subscriber manages hub subscriptions for feeds.
type Subscriber struct {
	store   *Store
	refetch Refetcher
	client  *http.Client
	baseURL string
}

// NewSubscriber builds a subscriber whose verification callback lives
// at <baseURL>/subscribe.
func NewSubscriber(store *Store, refetch Refetcher, baseURL string, client *http.Client) *Subscriber {
	if client == nil {
		client = &http.Client{Timeout: urlstore.DefaultTimeout}
	}
	return &Subscriber{
		store:   store,
		refetch: refetch,
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Subscribe requests a subscription for the feed at the given hub.
// Subscribing is idempotent: a verified subscription is left alone. The
// hub is expected to answer 204 and verify via the GET callback.
func (s *Subscriber) Subscribe(ctx context.Context, feedURL, hubURL string) error {
	existing, err := s.store.ForURL(ctx, feedURL)
	if err != nil {
		return err
	}
	if existing != nil && existing.Mode == modeSubscribe && existing.Verified {
		slog.Debug("Subscription already verified", "feed", feedURL)
		return nil
	}

	sub := &Subscription{
		URL:         feedURL,
		Hub:         hubURL,
		VerifyToken: generateVerifyToken(),
		Mode:        modeSubscribe,
		Verified:    false,
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return err
	}

	slog.Info("Subscribing at hub", "feed", feedURL, "hub", hubURL)

	form := url.Values{
		"hub.callback":     {s.callbackURL(feedURL)},
		"hub.mode":         {modeSubscribe},
		"hub.topic":        {feedURL},
		"hub.verify":       {"sync"},
		"hub.verify_token": {sub.VerifyToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hubURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build subscription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send subscription to hub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return &SubscriptionError{Hub: hubURL, Code: resp.StatusCode}
	}
	return nil
}

// Verify handles the hub's GET callback. It returns the challenge to
// echo back, or false when the parameters do not match a pending
// subscription (the handler then responds 404).
func (s *Subscriber) Verify(ctx context.Context, mode, topic, challenge, verifyToken string) (string, bool) {
	sub, err := s.store.ForURL(ctx, topic)
	if err != nil {
		slog.Warn("Subscription lookup failed", "feed", topic, "error", err)
		return "", false
	}
	if sub == nil {
		slog.Warn("Verification for unknown subscription", "feed", topic)
		return "", false
	}
	if sub.Mode != mode {
		slog.Warn("Verification with wrong mode", "feed", topic, "got", mode, "want", sub.Mode)
		return "", false
	}
	if sub.VerifyToken != verifyToken {
		slog.Warn("Verification with wrong token", "feed", topic)
		return "", false
	}

	sub.Verified = true
	if err := s.store.Save(ctx, sub); err != nil {
		slog.Warn("Marking subscription verified failed", "feed", topic, "error", err)
		return "", false
	}
	slog.Info("Subscription verified", "feed", topic)
	return challenge, true
}

// Notify handles an update notification for a feed. The notification
// body is ignored; the whole feed is refetched and cached with the
// increased expiry.
func (s *Subscriber) Notify(ctx context.Context, feedURL string) error {
	sub, err := s.store.ForURL(ctx, feedURL)
	if err != nil {
		return err
	}
	if sub == nil || sub.Mode != modeSubscribe || !sub.Verified {
		return ErrNotSubscribed
	}

	slog.Info("Hub notification", "feed", feedURL)
	if _, err := s.refetch.Refetch(ctx, feedURL, IncreasedExpiry); err != nil {
		return fmt.Errorf("refetch %s: %w", feedURL, err)
	}
	return nil
}

func (s *Subscriber) callbackURL(feedURL string) string {
	return s.baseURL + "/subscribe?" + url.Values{"url": {feedURL}}.Encode()
}

// generateVerifyToken returns an unguessable alphanumeric token. The
// configured secret key feeds the MAC so tokens cannot be reproduced
// from the random input alone.
func generateVerifyToken() string {
	mac := hmac.New(sha256.New, []byte(config.SecretKey))
	mac.Write([]byte(uuid.New().String()))
	return hex.EncodeToString(mac.Sum(nil))
}
