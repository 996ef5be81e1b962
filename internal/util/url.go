package util

import (
	"net/url"
	"strings"
)

// ResolveURL turns a root-relative href ("/items/1") into an absolute URL using
// baseURL. Anything else, or any href when baseURL is empty, is returned as is.
func ResolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if baseURL == "" || !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
		return href
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return strings.TrimSuffix(baseURL, "/") + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimSuffix(baseURL, "/") + href
	}
	return base.ResolveReference(ref).String()
}

// IsHTTPURL reports whether raw parses as an absolute http(s) URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
