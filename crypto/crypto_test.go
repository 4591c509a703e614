package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, h.Compare(hash, "correct horse battery staple"))
	assert.False(t, h.Compare(hash, "wrong password"))
}

func TestHashIsSalted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	h1, err := h.Hash("same")
	require.NoError(t, err)
	h2, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
}

func TestDummyHashIsWellFormed(t *testing.T) {
	cost, err := bcrypt.Cost([]byte(DummyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.False(t, NewBcryptHasher(bcrypt.MinCost).Compare(DummyHash, "anything"))
}

func TestRandomKey(t *testing.T) {
	k1, err := RandomKey(32)
	require.NoError(t, err)
	k2, err := RandomKey(32)
	require.NoError(t, err)

	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
}
