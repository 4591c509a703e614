package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"fleetdash/crypto"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppName  string         `yaml:"app_name"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenIP       string   `yaml:"listen_ip"`
	ListenPort     int      `yaml:"listen_port"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
	SecureCookies  bool     `yaml:"secure_cookies"` // set when TLS terminates at a proxy
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret      string         `yaml:"jwt_secret"`
	SessionKey     string         `yaml:"session_key"`
	BcryptCost     int            `yaml:"bcrypt_cost"`
	BootstrapAdmin BootstrapAdmin `yaml:"bootstrap_admin"`
}

// BootstrapAdmin is created on startup when the database holds no admin yet.
type BootstrapAdmin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const placeholderSecret = "CHANGE_ME_IN_PRODUCTION"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AppName: "Fleet Dashboard",
		Server: ServerConfig{
			ListenIP:   "0.0.0.0",
			ListenPort: 8080,
		},
		Database: DatabaseConfig{Path: "./fleetdash.db"},
		Auth:     AuthConfig{BcryptCost: 10},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML file, expands ${VAR} references, applies
// environment overrides and fills in missing secrets.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment overrides only.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if v := os.Getenv("FLEETDASH_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("FLEETDASH_SESSION_KEY"); v != "" {
		c.Auth.SessionKey = v
	}
	if v := os.Getenv("FLEETDASH_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == placeholderSecret {
		slog.Warn("no jwt secret configured, generating a random one; tokens will not survive a restart")
		key, err := crypto.RandomKey(32)
		if err != nil {
			return err
		}
		c.Auth.JWTSecret = key
	}
	if c.Auth.SessionKey == "" || c.Auth.SessionKey == placeholderSecret {
		slog.Warn("no session key configured, generating a random one; preference cookies will not survive a restart")
		key, err := crypto.RandomKey(32)
		if err != nil {
			return err
		}
		c.Auth.SessionKey = key
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.ListenPort <= 0 || c.Server.ListenPort > 65535 {
		return fmt.Errorf("server.listen_port %d out of range", c.Server.ListenPort)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost %d out of range", c.Auth.BcryptCost)
	}
	admin := c.Auth.BootstrapAdmin
	if (admin.Email == "") != (admin.Password == "") {
		return fmt.Errorf("auth.bootstrap_admin needs both email and password")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.ListenIP, c.Server.ListenPort)
}

func (c *Config) UseTLS() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.UseTLS() || c.Server.SecureCookies
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
