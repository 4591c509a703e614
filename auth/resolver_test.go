package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleetdash/logging"
	"fleetdash/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	}
	return req
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana@example.com", "pw", models.RoleAdmin, models.DefaultCapabilities())
	token, err := f.codec.Issue(u.ID)
	require.NoError(t, err)

	p, err := NewResolver(f.store, f.codec).Resolve(requestWithToken(token))
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, u.Email, p.Email)
	assert.Equal(t, u.FullName, p.FullName)
	assert.True(t, p.IsAdmin())
	assert.True(t, p.Can(models.CapVehicles))
}

func TestResolveFailures(t *testing.T) {
	f := newFixture(t)
	res := NewResolver(f.store, f.codec)

	_, err := res.Resolve(requestWithToken(""))
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = res.Resolve(requestWithToken("not-a-token"))
	assert.ErrorIs(t, err, ErrMalformedToken)

	old := NewTokenCodec(testSecret)
	old.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := old.Issue(1)
	require.NoError(t, err)
	_, err = res.Resolve(requestWithToken(expired))
	assert.ErrorIs(t, err, ErrExpiredToken)

	ghost, err := f.codec.Issue(12345)
	require.NoError(t, err)
	_, err = res.Resolve(requestWithToken(ghost))
	assert.ErrorIs(t, err, ErrSubjectNotFound)

	for _, e := range []error{ErrMissingToken, ErrMalformedToken, ErrExpiredToken, ErrSubjectNotFound, ErrInvalidSignature} {
		assert.True(t, IsAuthenticationError(e))
	}
}

func TestResolveSeesChangesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, "ana@example.com", "pw", models.RoleUser, models.DefaultCapabilities())
	token, err := f.codec.Issue(u.ID)
	require.NoError(t, err)
	res := NewResolver(f.store, f.codec)

	p, err := res.Resolve(requestWithToken(token))
	require.NoError(t, err)
	assert.True(t, p.Can(models.CapVehicles))

	u.Capabilities.Vehicles = false
	require.NoError(t, f.store.UpdateUser(ctx, u))

	p, err = res.Resolve(requestWithToken(token))
	require.NoError(t, err)
	assert.False(t, p.Can(models.CapVehicles))

	require.NoError(t, f.store.DeleteUser(ctx, u.ID))
	_, err = res.Resolve(requestWithToken(token))
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestResolveStoreFailureIsInternal(t *testing.T) {
	boom := errors.New("disk I/O error")
	codec := NewTokenCodec(testSecret)
	token, err := codec.Issue(1)
	require.NoError(t, err)

	_, err = NewResolver(failingUsers{boom}, codec).Resolve(requestWithToken(token))
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsAuthenticationError(err))
}

func TestResolverMiddleware(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana@example.com", "pw", models.RoleUser, models.DefaultCapabilities())
	token, err := f.codec.Issue(u.ID)
	require.NoError(t, err)

	var got *Principal
	h := NewResolver(f.store, f.codec).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	// every failure reason produces the same body
	var bodies []string
	for _, tok := range []string{"", "garbage", token + "x"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(tok))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
	assert.True(t, strings.Contains(bodies[0], `"status":"error"`))
}

func TestResolverMiddlewareStoreFailure(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	token, err := codec.Issue(1)
	require.NoError(t, err)

	h := NewResolver(failingUsers{errors.New("boom")}, codec).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	var logs bytes.Buffer
	logger := logging.New(&logs, "debug", "text").With("request_id", "req-1")
	req := requestWithToken(token)
	req = req.WithContext(logging.WithLogger(req.Context(), logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Contains(t, logs.String(), "resolving principal")
	assert.Contains(t, logs.String(), "request_id=req-1")
}
