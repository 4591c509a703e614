package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetdash/models"
)

const userColumns = `id, email, password_hash, full_name, role,
	can_view_expenses, can_view_external_expenses, can_view_vehicles, can_view_users,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role,
		&u.Capabilities.Expenses, &u.Capabilities.ExternalExpenses,
		&u.Capabilities.Vehicles, &u.Capabilities.Users,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by login identifier, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", strings.TrimSpace(email))
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// ListUsers returns all users ordered by id, optionally filtered by a
// substring of name or email.
func (s *Store) ListUsers(ctx context.Context, q string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE ? = '' OR full_name LIKE ? OR email LIKE ? ORDER BY id",
		strings.TrimSpace(q), likePattern(q), likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateUser inserts u and fills in its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, full_name, role,
			can_view_expenses, can_view_external_expenses, can_view_vehicles, can_view_users,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.FullName, string(u.Role),
		u.Capabilities.Expenses, u.Capabilities.ExternalExpenses,
		u.Capabilities.Vehicles, u.Capabilities.Users,
		now, now)
	if err != nil {
		return nil, translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

// UpdateUser overwrites every mutable column of the row with id u.ID,
// including the password hash. Callers preserve the old hash themselves.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, full_name = ?, role = ?,
			can_view_expenses = ?, can_view_external_expenses = ?, can_view_vehicles = ?, can_view_users = ?,
			updated_at = ?
		 WHERE id = ?`,
		u.Email, u.PasswordHash, u.FullName, string(u.Role),
		u.Capabilities.Expenses, u.Capabilities.ExternalExpenses,
		u.Capabilities.Vehicles, u.Capabilities.Users,
		now, u.ID)
	if err != nil {
		return translateErr(err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", hash, time.Now().UTC(), id)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users")
}

// EnsureAdmin creates the given account as admin when no admin exists yet.
// It reports whether a row was created.
func (s *Store) EnsureAdmin(ctx context.Context, email, fullName, passwordHash string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count); err != nil {
		return false, fmt.Errorf("checking for admin user: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	caps := models.DefaultCapabilities()
	caps.Users = true
	_, err := s.CreateUser(ctx, &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         models.RoleAdmin,
		Capabilities: caps,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
