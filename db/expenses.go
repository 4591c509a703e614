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

const expenseFieldColumns = `folio, date, company_name, bank, card, supplier, concept,
	reference, document, project, responsible, transfer, expense_type`

func expenseFieldDest(f *models.ExpenseFields, date *sql.NullTime) []any {
	return []any{&f.Folio, date, &f.CompanyName, &f.Bank, &f.Card, &f.Supplier, &f.Concept,
		&f.Reference, &f.Document, &f.Project, &f.Responsible, &f.Transfer, &f.ExpenseType}
}

func expenseFieldArgs(f *models.ExpenseFields) []any {
	var date any
	if f.Date != nil {
		date = f.Date.UTC()
	}
	return []any{f.Folio, date, f.CompanyName, f.Bank, f.Card, f.Supplier, f.Concept,
		f.Reference, f.Document, f.Project, f.Responsible, f.Transfer, f.ExpenseType}
}

func setDate(f *models.ExpenseFields, date sql.NullTime) {
	if date.Valid {
		t := date.Time
		f.Date = &t
	}
}

// ExpenseFilter narrows ListExpenses. Zero values mean no filtering.
type ExpenseFilter struct {
	VehicleID int64
	Query     string
}

const expenseSelect = `SELECT e.id, e.folio, e.date, e.company_name, e.bank, e.card, e.supplier,
	e.concept, e.reference, e.document, e.project, e.responsible, e.transfer, e.expense_type,
	e.created_at, v.id, v.brand, v.model, v.plates
	FROM expenses e JOIN vehicles v ON v.id = e.vehicle_id`

func scanExpense(row rowScanner) (*models.Expense, error) {
	var e models.Expense
	var date sql.NullTime
	dest := []any{&e.ID}
	dest = append(dest, expenseFieldDest(&e.ExpenseFields, &date)...)
	dest = append(dest, &e.CreatedAt, &e.Vehicle.ID, &e.Vehicle.Brand, &e.Vehicle.Model, &e.Vehicle.Plates)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	setDate(&e.ExpenseFields, date)
	e.Plate = e.Vehicle.Plates
	return &e, nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, expenseSelect+" WHERE e.id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// ListExpenses returns expenses newest first.
func (s *Store) ListExpenses(ctx context.Context, f ExpenseFilter) ([]models.Expense, error) {
	q := strings.TrimSpace(f.Query)
	like := likePattern(q)
	rows, err := s.db.QueryContext(ctx, expenseSelect+`
		WHERE (? = 0 OR e.vehicle_id = ?)
		  AND (? = '' OR e.concept LIKE ? OR e.supplier LIKE ? OR e.folio LIKE ? OR e.responsible LIKE ? OR v.plates LIKE ?)
		ORDER BY e.date IS NULL, e.date DESC, e.id DESC`,
		f.VehicleID, f.VehicleID, q, like, like, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// CreateExpense inserts e against e.Vehicle.ID and returns the stored row.
func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) (*models.Expense, error) {
	args := []any{e.Vehicle.ID}
	args = append(args, expenseFieldArgs(&e.ExpenseFields)...)
	args = append(args, time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (vehicle_id, `+expenseFieldColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s.GetExpense(ctx, id)
}

func (s *Store) UpdateExpense(ctx context.Context, e *models.Expense) (*models.Expense, error) {
	args := []any{e.Vehicle.ID}
	args = append(args, expenseFieldArgs(&e.ExpenseFields)...)
	args = append(args, e.ID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET vehicle_id = ?, folio = ?, date = ?, company_name = ?, bank = ?, card = ?,
			supplier = ?, concept = ?, reference = ?, document = ?, project = ?, responsible = ?,
			transfer = ?, expense_type = ?
		 WHERE id = ?`, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	if err := checkAffected(res); err != nil {
		return nil, err
	}
	return s.GetExpense(ctx, e.ID)
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (s *Store) CountExpenses(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM expenses")
}

const externalExpenseSelect = "SELECT id, " + expenseFieldColumns + ", created_at FROM external_expenses"

func scanExternalExpense(row rowScanner) (*models.ExternalExpense, error) {
	var e models.ExternalExpense
	var date sql.NullTime
	dest := []any{&e.ID}
	dest = append(dest, expenseFieldDest(&e.ExpenseFields, &date)...)
	dest = append(dest, &e.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	setDate(&e.ExpenseFields, date)
	return &e, nil
}

func (s *Store) GetExternalExpense(ctx context.Context, id int64) (*models.ExternalExpense, error) {
	e, err := scanExternalExpense(s.db.QueryRowContext(ctx, externalExpenseSelect+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (s *Store) ListExternalExpenses(ctx context.Context, query string) ([]models.ExternalExpense, error) {
	q := strings.TrimSpace(query)
	like := likePattern(q)
	rows, err := s.db.QueryContext(ctx, externalExpenseSelect+`
		WHERE ? = '' OR concept LIKE ? OR supplier LIKE ? OR folio LIKE ? OR responsible LIKE ? OR project LIKE ?
		ORDER BY date IS NULL, date DESC, id DESC`,
		q, like, like, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	expenses := []models.ExternalExpense{}
	for rows.Next() {
		e, err := scanExternalExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *Store) CreateExternalExpense(ctx context.Context, e *models.ExternalExpense) (*models.ExternalExpense, error) {
	args := expenseFieldArgs(&e.ExpenseFields)
	args = append(args, time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO external_expenses (`+expenseFieldColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s.GetExternalExpense(ctx, id)
}

func (s *Store) UpdateExternalExpense(ctx context.Context, e *models.ExternalExpense) (*models.ExternalExpense, error) {
	args := expenseFieldArgs(&e.ExpenseFields)
	args = append(args, e.ID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE external_expenses SET folio = ?, date = ?, company_name = ?, bank = ?, card = ?,
			supplier = ?, concept = ?, reference = ?, document = ?, project = ?, responsible = ?,
			transfer = ?, expense_type = ?
		 WHERE id = ?`, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	if err := checkAffected(res); err != nil {
		return nil, err
	}
	return s.GetExternalExpense(ctx, e.ID)
}

func (s *Store) DeleteExternalExpense(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM external_expenses WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	return checkAffected(res)
}

func (s *Store) CountExternalExpenses(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM external_expenses")
}
