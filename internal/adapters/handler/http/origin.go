package http

import (
	"net/http"
	"net/url"
	"strings"
)

// CheckOrigin accepts WebSocket upgrades from the same origins the CORS
// policy allows. Patterns are matched like rs/cors does: "*" allows any
// origin and a single "*" inside a pattern matches any substring. Requests
// without an Origin header and same-host requests are always accepted.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	patterns := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		patterns = append(patterns, strings.ToLower(strings.TrimSpace(origin)))
	}

	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		for _, pattern := range patterns {
			if matchOrigin(pattern, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

func matchOrigin(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	prefix, suffix, wildcard := strings.Cut(pattern, "*")
	if !wildcard {
		return pattern == origin
	}
	return len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(origin, prefix) &&
		strings.HasSuffix(origin, suffix)
}
