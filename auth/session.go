package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fleetdash/crypto"
	"fleetdash/db"
	"fleetdash/models"
)

const (
	// FlagCookie holds the unsigned "true" marker read only by the Gate.
	FlagCookie = "auth"
	// TokenCookie holds the signed session token read only by the Resolver.
	TokenCookie = "auth-token"
)

// UserStore is the part of the credential store the auth core reads.
// Lookups of unknown users must return db.ErrNotFound.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token   string
	Profile models.PublicUser
}

// Issuer verifies credentials and hands out session cookies.
type Issuer struct {
	users  UserStore
	hasher crypto.Hasher
	codec  *TokenCodec
	secure bool
	dummy  string
}

// NewIssuer builds an Issuer. secure marks cookies Secure and must be true
// whenever the site is served over TLS.
func NewIssuer(users UserStore, hasher crypto.Hasher, codec *TokenCodec, secure bool) *Issuer {
	// the dummy hash must cost as much as real ones
	dummy, err := hasher.Hash("fleetdash-timing-dummy")
	if err != nil {
		dummy = crypto.DummyHash
	}
	return &Issuer{users: users, hasher: hasher, codec: codec, secure: secure, dummy: dummy}
}

// Login checks email and password. Unknown email and wrong password both
// return ErrInvalidCredentials after one hash comparison each.
func (i *Issuer) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := i.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash := i.dummy
	if user != nil {
		hash = user.PasswordHash
	}
	match := i.hasher.Compare(hash, password)
	if user == nil || !match {
		return nil, ErrInvalidCredentials
	}

	token, err := i.codec.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: token, Profile: user.Public()}, nil
}

// SetCookies writes the flag cookie and the token cookie.
func (i *Issuer) SetCookies(w http.ResponseWriter, token string) {
	http.SetCookie(w, i.cookie(FlagCookie, "true", int(TokenTTL.Seconds())))
	http.SetCookie(w, i.cookie(TokenCookie, token, int(TokenTTL.Seconds())))
}

// ClearCookies expires both session cookies.
func (i *Issuer) ClearCookies(w http.ResponseWriter) {
	http.SetCookie(w, i.cookie(FlagCookie, "", -1))
	http.SetCookie(w, i.cookie(TokenCookie, "", -1))
}

func (i *Issuer) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
