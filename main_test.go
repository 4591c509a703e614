package main

import (
	"context"
	"testing"

	"fleetdash/config"
	"fleetdash/db"
	"fleetdash/logging"
	"fleetdash/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapAdmin(t *testing.T) {
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Auth.BcryptCost = 4
	require.NoError(t, bootstrapAdmin(ctx, cfg, store, logging.Discard()))
	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no bootstrap admin configured")

	cfg.Auth.BootstrapAdmin = config.BootstrapAdmin{Email: "root@example.com", Password: "changeme"}
	require.NoError(t, bootstrapAdmin(ctx, cfg, store, logging.Discard()))
	require.NoError(t, bootstrapAdmin(ctx, cfg, store, logging.Discard()))

	admin, err := store.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "Administrator", admin.FullName)

	n, err = store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
