package config

import (
	"os"
	"strconv"
	"strings"
)

// UserAgent is sent on every outbound request.
const UserAgent = "mygpo-feedservice +http://feeds.gpodder.net/"

var (
	// HTTP server settings
	Port         = getEnvWithDefault("PORT", "8080")
	BaseURL      = getEnvWithDefault("BASE_URL", "http://localhost:8080/")
	Debug        = getEnvBool("MYGPOFS_DEBUG", false)
	SecretKey    = os.Getenv("MYGPOFS_SECRET_KEY")
	AllowedHosts = splitHosts(os.Getenv("MYGPOFS_ALLOWED_HOSTS"))

	// Adapter settings
	SoundcloudConsumerKey = os.Getenv("MYGPOFS_SOUNDCLOUD_CONSUMER_KEY")
	FlattrThing           = os.Getenv("MYGPOFS_FLATTR_THING")
	// ResolveFileRedirects expands enclosure URLs into their redirect
	// chains with HEAD requests. Expensive on large feeds.
	ResolveFileRedirects = getEnvBool("MYGPOFS_RESOLVE_FILE_REDIRECTS", false)

	// URL cache settings. An empty ValkeyHost selects the in-process cache.
	ValkeyHost = os.Getenv("VALKEY_HOST")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)
	// CacheTTL is the fallback TTL (seconds) for responses without an
	// Expires header. 0 means such entries are revalidated on every hit.
	CacheTTL = getEnvInt("MYGPOFS_CACHE_TTL", 0)

	// Subscription store
	SubscriptionDB = getEnvWithDefault("MYGPOFS_SUBSCRIPTION_DB", "subscriptions.db")
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitHosts(value string) []string {
	var hosts []string
	for _, h := range strings.Split(value, ";") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
