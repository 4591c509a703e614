package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Capability names one resource class a user may be allowed to view.
type Capability string

const (
	CapExpenses         Capability = "expenses"
	CapExternalExpenses Capability = "external-expenses"
	CapVehicles         Capability = "vehicles"
	CapUsers            Capability = "users"
)

// Capabilities holds the per-user view flags. They are independent of Role.
type Capabilities struct {
	Expenses         bool `json:"can_view_expenses"`
	ExternalExpenses bool `json:"can_view_external_expenses"`
	Vehicles         bool `json:"can_view_vehicles"`
	Users            bool `json:"can_view_users"`
}

// DefaultCapabilities is what a new account gets when the creator leaves a flag unset.
func DefaultCapabilities() Capabilities {
	return Capabilities{Expenses: true, ExternalExpenses: true, Vehicles: true, Users: false}
}

func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapExpenses:
		return c.Expenses
	case CapExternalExpenses:
		return c.ExternalExpenses
	case CapVehicles:
		return c.Vehicles
	case CapUsers:
		return c.Users
	}
	return false
}

type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	FullName     string       `json:"full_name"`
	Role         Role         `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PublicUser is the projection of a User that may leave the server.
type PublicUser struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	Role         Role         `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		Capabilities: u.Capabilities,
		CreatedAt:    u.CreatedAt,
	}
}

type Vehicle struct {
	ID        int64     `json:"id"`
	Brand     string    `json:"brand"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	Model     string    `json:"model"`
	Plates    string    `json:"plates"`
	Location  string    `json:"location"`
	Engine    string    `json:"engine"`
	Serial    string    `json:"serial"`
	Eco       string    `json:"eco"`
	Contract  string    `json:"contract"`
	Status    string    `json:"status"`
	Agency    string    `json:"agency"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VehicleSummary struct {
	ID     int64  `json:"id"`
	Brand  string `json:"brand"`
	Model  string `json:"model"`
	Plates string `json:"plates"`
}

// ExpenseFields is shared by internal and external expenses.
type ExpenseFields struct {
	Folio       string     `json:"folio"`
	Date        *time.Time `json:"date"`
	CompanyName string     `json:"company_name"`
	Bank        string     `json:"bank"`
	Card        string     `json:"card"`
	Supplier    string     `json:"supplier"`
	Concept     string     `json:"concept"`
	Reference   string     `json:"reference"`
	Document    string     `json:"document"`
	Project     string     `json:"project"`
	Responsible string     `json:"responsible"`
	Transfer    string     `json:"transfer"`
	ExpenseType string     `json:"expense_type"`
}

type Expense struct {
	ID int64 `json:"id"`
	ExpenseFields
	Plate     string         `json:"plate"`
	Vehicle   VehicleSummary `json:"vehicle"`
	CreatedAt time.Time      `json:"created_at"`
}

type ExternalExpense struct {
	ID int64 `json:"id"`
	ExpenseFields
	CreatedAt time.Time `json:"created_at"`
}

// Stats counts the records the caller is allowed to see; hidden classes are nil.
type Stats struct {
	Vehicles         *int `json:"vehicles,omitempty"`
	Expenses         *int `json:"expenses,omitempty"`
	ExternalExpenses *int `json:"external_expenses,omitempty"`
	Users            *int `json:"users,omitempty"`
}
