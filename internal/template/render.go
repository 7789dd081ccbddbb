// Package template renders campaign email bodies by substituting named
// per-recipient placeholders, and builds the public tracking link embedded
// into each message.
package template

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholders may be written double-braced ({{firstName}}) or
// single-braced ({firstName}), with optional inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}|\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}`)

// Render substitutes every placeholder in body with the corresponding value
// from fields. Placeholders absent from the mapping are replaced with the
// empty string. Render is a pure, total transform: it never fails and
// performs no validation (unknown fields are rejected upstream at template
// save time, not here).
func Render(body string, fields map[string]string) string {
	if body == "" || !strings.Contains(body, "{") {
		return body
	}
	return placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		return fields[name]
	})
}

// TrackingLink builds the per-recipient decoy URL: the public sign-in path
// with the row's tracking identifier (id) and a fixed source marker (src).
func TrackingLink(baseURL, signInPath, trackingID string) string {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		// baseURL comes from config; a broken value still needs to produce
		// something inspectable rather than panic mid-send.
		u = &url.URL{Path: ""}
	}
	u.Path = strings.TrimRight(u.Path, "/") + ensureLeadingSlash(signInPath)

	q := url.Values{}
	q.Set("id", trackingID)
	q.Set("src", "email")
	u.RawQuery = q.Encode()
	return u.String()
}

func ensureLeadingSlash(p string) string {
	if p == "" {
		return "/sign-in"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
