package urlstore

import (
	"fmt"
	"net/url"
	"strings"
)

// Sanitize normalizes a URL for matching and storage: the host is
// lowercased and an empty path becomes "/". Unparseable input is
// returned unchanged.
func Sanitize(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Scheme == "" {
		return rawurl
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// Safe characters for URLFix. Sub-delims stay literal so fixed URLs
// look like what the feed author wrote; '%' stays safe in the query to
// leave existing escapes alone.
const (
	pathSafe  = "/+$!*'(),"
	querySafe = ":&%=+$!*'(),"
)

// URLFix percent-encodes the path and query of a URL that may contain
// unsafe characters (spaces, umlauts, ...), as often found in feed logo
// references. Non-absolute or unparseable input is returned unchanged.
func URLFix(rawurl string) string {
	u, err := url.Parse(strings.TrimSpace(rawurl))
	if err != nil || u.Scheme == "" {
		return rawurl
	}

	fixed := u.Scheme + "://" + u.Host + quote(u.Path, pathSafe)
	if u.RawQuery != "" {
		fixed += "?" + quote(u.RawQuery, querySafe)
	}
	if u.Fragment != "" {
		fixed += "#" + quote(u.Fragment, querySafe)
	}
	return fixed
}

// quote percent-encodes every byte that is neither unreserved nor in
// the safe set.
func quote(s, safe string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		unreserved := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-' || c == '~'
		if unreserved || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
