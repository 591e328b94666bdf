package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawCookie is a cookie as exported by a browser extension or devtools.
type RawCookie map[string]any

// Cookie is a cookie in the form accepted by the automation layer.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Accepted SameSite values.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

var sameSiteValues = map[string]string{
	"no_restriction": SameSiteNone,
	"unspecified":    SameSiteNone,
	"strict":         SameSiteStrict,
	"lax":            SameSiteLax,
	"none":           SameSiteNone,
}

// rejectedCookieFields are extension-export fields the automation layer refuses.
var rejectedCookieFields = []string{"storeId", "hostOnly", "session"}

// NormalizeSameSite maps any exported sameSite spelling to Strict, Lax or None.
// Unknown or missing values become Lax.
func NormalizeSameSite(v any) string {
	if v == nil {
		return SameSiteLax
	}
	raw := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if s, ok := sameSiteValues[raw]; ok {
		return s
	}
	return SameSiteLax
}

// SanitizeCookies returns cleaned copies of the given cookies: sameSite is
// normalized, rejected fields are stripped and expirationDate becomes expires.
// The input maps are not modified.
func SanitizeCookies(cookies []RawCookie) []RawCookie {
	cleaned := make([]RawCookie, 0, len(cookies))
	for _, cookie := range cookies {
		c := make(RawCookie, len(cookie))
		for k, v := range cookie {
			c[k] = v
		}
		c["sameSite"] = NormalizeSameSite(cookie["sameSite"])
		for _, key := range rejectedCookieFields {
			delete(c, key)
		}
		if exp, ok := c["expirationDate"]; ok {
			if _, has := c["expires"]; !has {
				c["expires"] = exp
			}
			delete(c, "expirationDate")
		}
		cleaned = append(cleaned, c)
	}
	return cleaned
}

// DecodeCookies sanitizes raw cookies and converts them to typed cookies.
func DecodeCookies(raw []RawCookie) ([]Cookie, error) {
	out := make([]Cookie, 0, len(raw))
	for i, c := range SanitizeCookies(raw) {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode cookie %d: %w", i, err)
		}
		var cookie Cookie
		if err := json.Unmarshal(data, &cookie); err != nil {
			return nil, fmt.Errorf("decode cookie %d: %w", i, err)
		}
		if cookie.Name == "" {
			return nil, fmt.Errorf("cookie %d: name is required", i)
		}
		if cookie.Domain == "" && cookie.URL == "" {
			return nil, fmt.Errorf("cookie %q: domain or url is required", cookie.Name)
		}
		out = append(out, cookie)
	}
	return out, nil
}
