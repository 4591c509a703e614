package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
app_name: TestApp
server:
  listen_ip: 127.0.0.1
  listen_port: 9090
database:
  path: /tmp/fleet.db
auth:
  jwt_secret: test-jwt-secret
  session_key: test-session-key
  bcrypt_cost: 4
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "TestApp", cfg.AppName)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "/tmp/fleet.db", cfg.Database.Path)
	assert.Equal(t, "test-jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "test-session-key", cfg.Auth.SessionKey)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.UseTLS())
	assert.False(t, cfg.SecureCookies())
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "app_name: Partial\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.ListenPort)
	assert.Equal(t, "./fleetdash.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_FLEET_SECRET", "from-env")
	path := writeConfig(t, "auth:\n  jwt_secret: ${TEST_FLEET_SECRET}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("FLEETDASH_JWT_SECRET", "override")
	t.Setenv("FLEETDASH_SESSION_KEY", "override-session")
	path := writeConfig(t, "auth:\n  jwt_secret: in-file\n  session_key: in-file\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Auth.JWTSecret)
	assert.Equal(t, "override-session", cfg.Auth.SessionKey)
}

func TestPlaceholderSecretIsReplaced(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: CHANGE_ME_IN_PRODUCTION\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NotEqual(t, placeholderSecret, cfg.Auth.JWTSecret)
	assert.Len(t, cfg.Auth.JWTSecret, 64)
	assert.NotEmpty(t, cfg.Auth.SessionKey)
}

func TestLoadConfigInvalidPath(t *testing.T) {
	_, err := LoadConfig("non-existent-path.yaml")
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.ListenPort = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"tls cert without key", func(c *Config) { c.Server.TLSCert = "cert.pem" }},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }},
		{"bootstrap admin without password", func(c *Config) { c.Auth.BootstrapAdmin.Email = "a@b.c" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSecureCookies(t *testing.T) {
	cfg := Default()
	cfg.Server.TLSCert = "cert.pem"
	cfg.Server.TLSKey = "key.pem"
	assert.True(t, cfg.SecureCookies())

	cfg = Default()
	cfg.Server.SecureCookies = true
	assert.True(t, cfg.SecureCookies())
}
