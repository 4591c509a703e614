package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetdash/config"
	"fleetdash/crypto"
	"fleetdash/db"
	"fleetdash/handlers"
	"fleetdash/i18n"
	"fleetdash/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("FLEETDASH_CONFIG"), "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadConfig(path)
}

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if err := i18n.LoadTranslations(); err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := bootstrapAdmin(ctx, cfg, store, logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewServer(cfg, store, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "app", cfg.AppName, "tls", cfg.UseTLS())
		if cfg.UseTLS() {
			errCh <- srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// bootstrapAdmin creates the configured admin account when the database
// has no admin yet.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, store *db.Store, logger *slog.Logger) error {
	admin := cfg.Auth.BootstrapAdmin
	if admin.Email == "" {
		return nil
	}

	hash, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(admin.Password)
	if err != nil {
		return fmt.Errorf("hashing bootstrap admin password: %w", err)
	}
	fullName := admin.FullName
	if fullName == "" {
		fullName = "Administrator"
	}

	created, err := store.EnsureAdmin(ctx, admin.Email, fullName, hash)
	if err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}
	if created {
		logger.Info("bootstrap admin created", "email", admin.Email)
	}
	return nil
}
