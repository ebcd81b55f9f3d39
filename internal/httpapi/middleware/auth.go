package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// Keys holds the API keys accepted for read (Public) and write (Admin) routes.
type Keys struct {
	Public []string
	Admin  []string
}

// Open reports whether no keys are configured at all.
func (k Keys) Open() bool { return len(k.Public) == 0 && len(k.Admin) == 0 }

type role int

const (
	roleNone role = iota
	rolePublic
	roleAdmin
)

// roleOf checks admin keys first so a key listed in both sets is admin.
func (k Keys) roleOf(key string) role {
	switch {
	case key == "":
		return roleNone
	case containsKey(k.Admin, key):
		return roleAdmin
	case containsKey(k.Public, key):
		return rolePublic
	}
	return roleNone
}

func containsKey(set []string, key string) bool {
	found := 0
	for _, k := range set {
		found |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return found == 1
}

// presentedKey reads "Authorization: Bearer <key>" or X-API-Key.
func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"status": "error", "error": msg})
}

// RequireAny allows requests that present either a public or admin key.
// With no keys configured every request passes (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if keys.Open() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.roleOf(presentedKey(r)) == roleNone {
				deny(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only permits admin keys. A missing or unknown key is 401,
// a public key 403. With no admin keys configured it is open.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch keys.roleOf(presentedKey(r)) {
			case roleAdmin:
				next.ServeHTTP(w, r)
			case rolePublic:
				deny(w, r, http.StatusForbidden, "forbidden")
			default:
				deny(w, r, http.StatusUnauthorized, "unauthorized")
			}
		})
	}
}
