package bookmarks

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for by-URL lookups: scheme and host are
// lowercased, default ports are stripped, and the fragment is dropped. Path
// and query are preserved as-is since their case is significant. Strings
// that do not parse as absolute URLs are returned verbatim so they still
// get a (degenerate) index entry.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
