package middleware

import (
	"net/http"
	"strings"
)

// originPattern matches wildcard entries like "https://*.havenmind.care",
// admitting any non-empty subdomain under the listed host.
type originPattern struct {
	prefix string // scheme including "://"
	suffix string // host suffix including the leading dot
}

func (p originPattern) matches(origin string) bool {
	return strings.HasPrefix(origin, p.prefix) &&
		strings.HasSuffix(origin, p.suffix) &&
		len(origin) > len(p.prefix)+len(p.suffix)
}

// CORS provides a simple allowlist-based CORS middleware.
// If allowedOrigins contains "*", any Origin is echoed back. Entries of the
// form "https://*.example.com" allow every subdomain of example.com.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	allow := map[string]struct{}{}
	var patterns []originPattern
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		if scheme, host, ok := strings.Cut(origin, "://"); ok && strings.HasPrefix(host, "*.") {
			patterns = append(patterns, originPattern{
				prefix: scheme + "://",
				suffix: strings.TrimPrefix(host, "*"),
			})
			continue
		}
		allow[origin] = struct{}{}
	}

	allowedHeaders := "Authorization, Content-Type, X-Request-Id"
	allowedMethods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	// The on-call dashboard reads the request id off responses to correlate
	// incidents with server logs.
	exposedHeaders := "X-Request-Id"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && (allowAny || isAllowedOrigin(allow, patterns, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedOrigin(allow map[string]struct{}, patterns []originPattern, origin string) bool {
	if _, ok := allow[origin]; ok {
		return true
	}
	for _, p := range patterns {
		if p.matches(origin) {
			return true
		}
	}
	return false
}
