// Package normalizers canonicalizes contact fields before they are compared
package normalizers

import (
	"net/url"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// SocialKeys are the attribute keys treated as social handles.
var SocialKeys = []string{"twitter", "instagram", "facebook", "linkedin", "tiktok", "github"}

// registry maps the normalizer names used by match rules to their functions
var registry = map[string]Normalizer{
	"nphone":  NormalizePhone,
	"nemail":  NormalizeEmail,
	"nurl":    NormalizeURL,
	"nhandle": NormalizeHandle,
}

// Apply applies a named normalizer to a value. Unknown names leave the value untouched.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmailValue normalizes string values; anything else is returned unchanged.
func NormalizeEmailValue(v models.Value) models.Value {
	s, ok := v.AsString()
	if !ok {
		return v
	}
	return models.String(NormalizeEmail(s))
}

// NormalizePhone keeps the ASCII digits of a phone number. A leading + on the trimmed
// input is kept even when no digits remain.
func NormalizePhone(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if strings.HasPrefix(strings.TrimSpace(s), "+") {
		return "+" + digits.String()
	}
	return digits.String()
}

// NormalizeURL drops the fragment and trailing slashes of an absolute URL.
// Values that do not parse as absolute URLs are trimmed and lowercased instead.
func NormalizeURL(s string) string {
	raw := strings.TrimSpace(s)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")

	return u.String()
}

// NormalizeHandle normalizes a social handle (lowercase, trim)
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSocialHandles normalizes the known social keys present with string values.
// Absent keys are omitted from the result.
func NormalizeSocialHandles(data models.Attributes) map[string]string {
	out := make(map[string]string)
	for _, key := range SocialKeys {
		if s, ok := data.GetString(key); ok {
			out[key] = NormalizeHandle(s)
		}
	}
	return out
}

// ForKey returns the normalizer name used when comparing the given attribute key.
func ForKey(key string) (string, bool) {
	switch key {
	case "email":
		return "nemail", true
	case "phone":
		return "nphone", true
	case "url", "website":
		return "nurl", true
	}
	for _, social := range SocialKeys {
		if key == social {
			return "nhandle", true
		}
	}
	return "", false
}

// NormalizeForKey normalizes v when key is a known contact field and v is a string.
func NormalizeForKey(key string, v models.Value) models.Value {
	name, ok := ForKey(key)
	if !ok {
		return v
	}
	if name == "nemail" {
		return NormalizeEmailValue(v)
	}
	s, ok := v.AsString()
	if !ok {
		return v
	}
	return models.String(Apply(s, name))
}
