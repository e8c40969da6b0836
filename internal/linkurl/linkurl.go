// Package linkurl holds the URL rules shared by the scheduler, the pager and the status feed.
package linkurl

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// basePrefixRe matches scheme://host/ at the start of a stored key. Keys without a path
// (scheme://host) deliberately do not match.
var basePrefixRe = regexp.MustCompile(`^([a-z]+://[^/]+/)`)

// Eligible reports whether the URL uses a scheme the prober handles.
func Eligible(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// HostKey returns the normalized host used for per-host fairness: lowercase, port stripped,
// internationalized names converted to their ASCII form. Unparseable URLs yield "".
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

// BasePrefix extracts the scheme://host/ prefix of a key, if the key has one.
func BasePrefix(key string) (string, bool) {
	m := basePrefixRe.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return m[1], true
}
