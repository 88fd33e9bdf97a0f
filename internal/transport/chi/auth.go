package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth holds the bearer keys the API accepts. Operator keys may do
// anything; viewer keys are limited to safe methods, so a dashboard token
// cannot delete runs. No keys at all disables authentication.
type Auth struct {
	Keys         []string
	ReadOnlyKeys []string
}

type access int

const (
	accessNone access = iota
	accessRead
	accessFull
)

// Probes and scrapes never carry a token.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

const bearerPrefix = "Bearer "

// BearerAuthMiddleware checks the Authorization header against a.
func BearerAuthMiddleware(a Auth) func(http.Handler) http.Handler {
	keys := map[string]access{}
	for _, k := range a.ReadOnlyKeys {
		if k != "" {
			keys[k] = accessRead
		}
	}
	for _, k := range a.Keys {
		if k != "" {
			keys[k] = accessFull
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			switch {
			case r.Header.Get("Authorization") == "":
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			case !ok:
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			switch lookup(keys, token) {
			case accessNone:
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
			case accessRead:
				if !safeMethod(r.Method) {
					writeError(w, http.StatusForbidden, CodeForbidden, "read-only key cannot "+strings.ToLower(r.Method)+" runs")
					return
				}
				next.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// lookup compares token against every key in constant time.
func lookup(keys map[string]access, token string) access {
	found := accessNone
	for k, lvl := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			found = lvl
		}
	}
	return found
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}
