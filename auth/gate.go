package auth

import (
	"net/http"
	"strings"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// gateExempt lists path prefixes that enforce their own checks.
var gateExempt = []string{"/api/", "/static/", "/captcha/"}

func isGateExempt(path string) bool {
	if path == "/api" || path == "/healthz" {
		return true
	}
	for _, prefix := range gateExempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Gate is the coarse perimeter check for page requests. It only looks at
// the unsigned flag cookie; pages still resolve the caller themselves.
func Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isGateExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		loggedIn := false
		if c, err := r.Cookie(FlagCookie); err == nil && c.Value == "true" {
			loggedIn = true
		}
		onLogin := r.URL.Path == LoginPath

		switch {
		case !loggedIn && !onLogin:
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		case loggedIn && onLogin:
			http.Redirect(w, r, HomePath, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
