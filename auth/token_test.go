package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("token-codec-test-secret-32-bytes")

func fixedCodec(t *testing.T, at time.Time) *TokenCodec {
	t.Helper()
	c := NewTokenCodec(testSecret)
	c.now = func() time.Time { return at }
	return c
}

func TestTokenRoundTrip(t *testing.T) {
	c := NewTokenCodec(testSecret)

	token, err := c.Issue(42)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	id, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenCarriesOnlySubjectAndExpiry(t *testing.T) {
	c := NewTokenCodec(testSecret)
	token, err := c.Issue(7)
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"sub":"7"`)
	assert.Contains(t, string(payload), `"exp":`)
	assert.NotContains(t, string(payload), "role")
	assert.NotContains(t, string(payload), "email")
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	token, err := fixedCodec(t, issued).Issue(1)
	require.NoError(t, err)

	_, err = fixedCodec(t, issued.Add(TokenTTL-time.Second)).Verify(token)
	assert.NoError(t, err)

	_, err = fixedCodec(t, issued.Add(TokenTTL+time.Second)).Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenAnySingleCharacterChangeFailsSignature(t *testing.T) {
	c := NewTokenCodec(testSecret)
	token, err := c.Issue(99)
	require.NoError(t, err)

	for i := range token {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := c.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidSignature, "position %d", i)
	}
}

func TestTokenChangedSeparatorIsMalformed(t *testing.T) {
	c := NewTokenCodec(testSecret)
	token, err := c.Issue(99)
	require.NoError(t, err)

	for i := range token {
		if token[i] != '.' {
			continue
		}
		_, err := c.Verify(token[:i] + "A" + token[i+1:])
		assert.ErrorIs(t, err, ErrMalformedToken, "position %d", i)
		assert.True(t, IsAuthenticationError(err))
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenCodec([]byte("another-secret-entirely-32-bytes")).Issue(5)
	require.NoError(t, err)

	_, err = NewTokenCodec(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenMalformed(t *testing.T) {
	c := NewTokenCodec(testSecret)
	for _, token := range []string{"", "abc", "a.b", "a..c", ".b.c", "a.b.", "a.b.c.d"} {
		_, err := c.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func signRaw(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestTokenRejectsBadClaims(t *testing.T) {
	c := NewTokenCodec(testSecret)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]jwt.Claims{
		"missing exp":     jwt.RegisteredClaims{Subject: "1"},
		"non-numeric sub": jwt.RegisteredClaims{Subject: "admin", ExpiresAt: exp},
		"zero sub":        jwt.RegisteredClaims{Subject: "0", ExpiresAt: exp},
		"negative sub":    jwt.RegisteredClaims{Subject: "-3", ExpiresAt: exp},
		"missing sub":     jwt.RegisteredClaims{ExpiresAt: exp},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Verify(signRaw(t, claims))
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestTokenRejectsUnsignedAlgorithm(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// alg=none leaves the signature segment empty
	_, err = NewTokenCodec(testSecret).Verify(unsigned + "AAAA")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
