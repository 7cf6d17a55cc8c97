package domain

import (
	"net/url"
	"strings"
)

// LocalRedirectPath returns target as a same-site path with query, or "" when
// target could leave the site. Browsers drop tabs and newlines inside a
// Location value, so any ASCII control character is rejected outright.
func LocalRedirectPath(target string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return ""
	}
	for i := 0; i < len(target); i++ {
		if target[i] < 0x20 || target[i] == 0x7f {
			return ""
		}
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.Opaque != "" {
		return ""
	}
	path := parsed.RequestURI()
	if strings.HasPrefix(path, "//") {
		return ""
	}
	return path
}
