// Package urlstore fetches URLs with conditional-GET semantics and
// memoizes the responses in a pluggable cache. Permanent redirects are
// recorded but not followed so callers can surface them as feed moves.
package urlstore

import (
	"fmt"
	"time"
)

// Resource is one fetched URL together with its cache validators.
type Resource struct {
	// URL is the final URL after following non-permanent redirects.
	URL string `json:"url"`
	// URLs is the redirect chain, starting with the URL the caller
	// requested. URL is always an element of URLs.
	URLs []string `json:"urls"`
	// PermanentRedirect is set when the server answered 301; the target
	// is not fetched automatically.
	PermanentRedirect string `json:"permanent_redirect,omitempty"`

	Content     []byte `json:"content,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Length      int64  `json:"length,omitempty"`
	ETag        string `json:"etag,omitempty"`

	// LastModifiedUpstream is the parsed Last-Modified response header.
	LastModifiedUpstream time.Time `json:"last_modified_upstream,omitzero"`
	// LastModifiedLocal is the UTC wallclock of the fetch (or of the
	// last successful revalidation).
	LastModifiedLocal time.Time `json:"last_modified_local,omitzero"`
	// Expires is the parsed Expires header plus any additive TTL. The
	// zero value means the entry must be revalidated on every hit.
	Expires time.Time `json:"expires,omitzero"`
}

// Expired reports whether the entry needs revalidation. Entries without
// an expiry date are revalidated on every hit; the conditional request
// headers keep that cheap.
func (r *Resource) Expired() bool {
	return r.Expires.IsZero() || !r.Expires.After(time.Now().UTC())
}

// Valid reports whether the entry carries usable content.
func (r *Resource) Valid() bool {
	return len(r.Content) > 0
}

// ChangedSince reports whether the resource changed after t. Resources
// without an upstream modification date always count as changed.
func (r *Resource) ChangedSince(t time.Time) bool {
	if t.IsZero() || r.LastModifiedUpstream.IsZero() {
		return true
	}
	return r.LastModifiedUpstream.After(t)
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s (%s, %s, %s)", r.URL, r.ETag, r.Expires, r.LastModifiedUpstream)
}
