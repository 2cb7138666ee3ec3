package transport

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// CheckOrigin builds the upgrader origin check. No origins keeps gorilla's
// same-host default, "*" allows everything.
func CheckOrigin(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	if lo.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	allowed := lo.FilterMap(origins, func(o string, _ int) (string, bool) { return normalizeOrigin(o) })
	return func(r *http.Request) bool {
		origin, ok := normalizeOrigin(r.Header.Get("Origin"))
		return ok && lo.Contains(allowed, origin)
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
