package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"fleetdash/db"
	"fleetdash/logging"
)

// Resolver turns the token cookie of a request into a live Principal.
type Resolver struct {
	users UserStore
	codec *TokenCodec
}

func NewResolver(users UserStore, codec *TokenCodec) *Resolver {
	return &Resolver{users: users, codec: codec}
}

// Resolve verifies the token cookie and re-reads the user it names, so
// role and capability changes apply to the very next request.
func (res *Resolver) Resolve(r *http.Request) (*Principal, error) {
	c, err := r.Cookie(TokenCookie)
	if err != nil || c.Value == "" {
		return nil, ErrMissingToken
	}

	id, err := res.codec.Verify(c.Value)
	if err != nil {
		return nil, err
	}

	user, err := res.users.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	return principalFromUser(user), nil
}

// Middleware resolves every request and stores the principal in its
// context. Authentication failures get one generic 401 body whatever the
// cause.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := res.Resolve(r)
		if err != nil {
			logger := logging.FromContext(r.Context(), slog.Default())
			if IsAuthenticationError(err) {
				logger.Debug("request not authenticated", "path", r.URL.Path, "reason", err)
				writeError(w, r, http.StatusUnauthorized, "NotAuthenticated")
				return
			}
			logger.Error("resolving principal", "path", r.URL.Path, "error", err)
			writeError(w, r, http.StatusInternalServerError, "InternalServerError")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
