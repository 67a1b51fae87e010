package engine

import (
	"net/url"
	"strings"
)

// normalizeURL standardizes a URL for visited-set membership: lowercase
// scheme and host, default ports and fragments stripped, query parameters
// sorted. Unparseable input falls back to the raw string so the idempotency
// guarantee still holds per exact spelling.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String()
}
