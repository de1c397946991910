package chi

import (
	"net/http"
	"strings"
)

const codeUnauthorized = "unauthorized"

// Paths reachable without a token. Probes and scrapers cannot carry keys.
var exemptPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// BearerAuthMiddleware validates Authorization: Bearer tokens against the
// configured key list. An empty list disables auth entirely.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "Missing or malformed Authorization header")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
			if _, ok := keys[token]; !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
