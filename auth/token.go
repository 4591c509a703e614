package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of a session token and of both session cookies.
const TokenTTL = 24 * time.Hour

// TokenCodec issues and verifies HS256 session tokens. A token carries the
// user id and its expiry, nothing else.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{
		secret: secret,
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithStrictDecoding()),
	}
}

// Issue signs a token for userID that expires TokenTTL from now.
func (c *TokenCodec) Issue(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(c.now().Add(TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify returns the user id carried by token. The signature is checked
// before anything inside the token is trusted, so any change to an issued
// token yields ErrInvalidSignature.
func (c *TokenCodec) Verify(token string) (int64, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return 0, ErrMalformedToken
	}

	sig, err := c.parser.DecodeSegment(parts[2])
	if err != nil {
		return 0, ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret); err != nil {
		return 0, ErrInvalidSignature
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrMalformedToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedToken
	}
	return id, nil
}
