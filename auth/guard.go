package auth

import (
	"encoding/json"
	"net/http"

	"fleetdash/i18n"
	"fleetdash/models"
)

// Principal is the identity attached to one request. It is rebuilt from
// the credential store on every request and never cached.
type Principal struct {
	ID           int64
	Email        string
	FullName     string
	Role         models.Role
	Capabilities models.Capabilities
}

func principalFromUser(u *models.User) *Principal {
	return &Principal{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		Capabilities: u.Capabilities,
	}
}

// Can reports whether the principal holds capability c. Admins get no
// implicit capabilities.
func (p *Principal) Can(c models.Capability) bool {
	return p != nil && p.Capabilities.Has(c)
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

func RequireCapability(p *Principal, c models.Capability) error {
	if !p.Can(c) {
		return ErrMissingCapability
	}
	return nil
}

func RequireAdmin(p *Principal) error {
	if !p.IsAdmin() {
		return ErrInsufficientRole
	}
	return nil
}

// CheckSelfDelete refuses deletion of the caller's own account.
func CheckSelfDelete(p *Principal, targetID int64) error {
	if p != nil && p.ID == targetID {
		return ErrSelfDeleteForbidden
	}
	return nil
}

// CapabilityMiddleware answers 403 unless the resolved principal holds c.
func CapabilityMiddleware(c models.Capability) func(http.Handler) http.Handler {
	return guardMiddleware(func(p *Principal) error { return RequireCapability(p, c) })
}

// AdminMiddleware answers 403 unless the resolved principal is an admin.
func AdminMiddleware() func(http.Handler) http.Handler {
	return guardMiddleware(RequireAdmin)
}

func guardMiddleware(check func(*Principal) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, r, http.StatusUnauthorized, "NotAuthenticated")
				return
			}
			if err := check(p); err != nil {
				writeError(w, r, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes the same error envelope the API handlers use.
func writeError(w http.ResponseWriter, r *http.Request, status int, key string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": i18n.T(i18n.DetectLanguage(r), key),
	})
}
