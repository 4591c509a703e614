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

const vehicleColumns = `id, brand, type, color, model, plates, location, engine, serial,
	eco, contract, status, agency, project, created_at, updated_at`

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(&v.ID, &v.Brand, &v.Type, &v.Color, &v.Model, &v.Plates, &v.Location,
		&v.Engine, &v.Serial, &v.Eco, &v.Contract, &v.Status, &v.Agency, &v.Project,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) getVehicle(ctx context.Context, where string, arg any) (*models.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE "+where, arg)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (s *Store) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	return s.getVehicle(ctx, "id = ?", id)
}

func (s *Store) GetVehicleByPlates(ctx context.Context, plates string) (*models.Vehicle, error) {
	return s.getVehicle(ctx, "plates = ?", strings.TrimSpace(plates))
}

func (s *Store) ListVehicles(ctx context.Context, q string) ([]models.Vehicle, error) {
	like := likePattern(q)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+vehicleColumns+` FROM vehicles
		 WHERE ? = '' OR brand LIKE ? OR model LIKE ? OR plates LIKE ? OR serial LIKE ? OR eco LIKE ? OR project LIKE ?
		 ORDER BY id`,
		strings.TrimSpace(q), like, like, like, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (brand, type, color, model, plates, location, engine, serial,
			eco, contract, status, agency, project, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Brand, v.Type, v.Color, v.Model, v.Plates, v.Location, v.Engine, v.Serial,
		v.Eco, v.Contract, v.Status, v.Agency, v.Project, now, now)
	if err != nil {
		return nil, translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, nil
}

func (s *Store) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET brand = ?, type = ?, color = ?, model = ?, plates = ?, location = ?,
			engine = ?, serial = ?, eco = ?, contract = ?, status = ?, agency = ?, project = ?,
			updated_at = ?
		 WHERE id = ?`,
		v.Brand, v.Type, v.Color, v.Model, v.Plates, v.Location, v.Engine, v.Serial,
		v.Eco, v.Contract, v.Status, v.Agency, v.Project, now, v.ID)
	if err != nil {
		return translateErr(err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	v.UpdatedAt = now
	return nil
}

// DeleteVehicle fails with ErrInUse while expenses still reference the vehicle.
func (s *Store) DeleteVehicle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (s *Store) CountVehicles(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM vehicles")
}
