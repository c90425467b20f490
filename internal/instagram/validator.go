package instagram

import (
	"regexp"
	"strings"
)

var (
	profileURLRe = regexp.MustCompile(`^https?://(www\.)?instagram\.com/([a-zA-Z0-9._]+)/?$`)
	usernameRe   = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)
)

// IsValidURL reports whether raw is an Instagram profile URL.
func IsValidURL(raw string) bool {
	return profileURLRe.MatchString(strings.TrimSpace(raw))
}

// ExtractUsername returns the username of a profile URL, or "" if raw is not one.
func ExtractUsername(raw string) string {
	m := profileURLRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	return m[2]
}

// NormalizeURL rewrites a profile URL to https://www.instagram.com/<username>.
func NormalizeURL(raw string) string {
	u := ExtractUsername(raw)
	if u == "" {
		return ""
	}
	return "https://www.instagram.com/" + u
}

// IsValidUsername reports whether s is a bare handle.
func IsValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// UsernameFromContact accepts a profile URL, a bare handle or an @handle.
func UsernameFromContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return ""
	}
	if u := ExtractUsername(contact); u != "" {
		return u
	}
	if h := strings.TrimPrefix(contact, "@"); IsValidUsername(h) {
		return h
	}
	return ""
}
