package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

const PrefsSessionName = "fleetdash-prefs"

// NewPrefsStore builds the cookie store for non-security UI state (theme,
// flash messages). Identity never lives here.
func NewPrefsStore(sessionKey string, secure bool) *sessions.CookieStore {
	authKey := sha256.Sum256([]byte(sessionKey + "auth"))
	encKey := sha256.Sum256([]byte(sessionKey + "encryption"))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
