package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"fleetdash/auth"
	"fleetdash/db"
	"fleetdash/i18n"
	"fleetdash/models"
)

// expenseInput carries the fields shared by both expense kinds. Dates come
// in as YYYY-MM-DD or RFC 3339.
type expenseInput struct {
	Folio       string `json:"folio"`
	Date        string `json:"date"`
	CompanyName string `json:"company_name"`
	Bank        string `json:"bank"`
	Card        string `json:"card"`
	Supplier    string `json:"supplier"`
	Concept     string `json:"concept"`
	Reference   string `json:"reference"`
	Document    string `json:"document"`
	Project     string `json:"project"`
	Responsible string `json:"responsible"`
	Transfer    string `json:"transfer"`
	ExpenseType string `json:"expense_type"`
	Plate       string `json:"plate"`
}

// fields validates the shared part. An empty responsible takes
// defaultResponsible: the caller's name on create, the stored value on update.
func (in expenseInput) fields(defaultResponsible, missingKey string) (models.ExpenseFields, error) {
	f := models.ExpenseFields{
		Folio:       strings.TrimSpace(in.Folio),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Bank:        strings.TrimSpace(in.Bank),
		Card:        strings.TrimSpace(in.Card),
		Supplier:    strings.TrimSpace(in.Supplier),
		Concept:     strings.TrimSpace(in.Concept),
		Reference:   strings.TrimSpace(in.Reference),
		Document:    strings.TrimSpace(in.Document),
		Project:     strings.TrimSpace(in.Project),
		Responsible: strings.TrimSpace(in.Responsible),
		Transfer:    strings.TrimSpace(in.Transfer),
		ExpenseType: strings.TrimSpace(in.ExpenseType),
	}
	if f.Concept == "" {
		return f, validationError{key: missingKey}
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return f, err
	}
	f.Date = date
	if f.Responsible == "" {
		f.Responsible = defaultResponsible
	}
	return f, nil
}

func callerName(r *http.Request) string {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return p.FullName
	}
	return ""
}

// expense builds an internal expense, resolving the plate to its vehicle.
func (s *Server) expense(r *http.Request, in expenseInput, defaultResponsible string) (*models.Expense, error) {
	plate := strings.TrimSpace(in.Plate)
	if plate == "" {
		return nil, validationError{key: "MissingExpenseFields"}
	}
	f, err := in.fields(defaultResponsible, "MissingExpenseFields")
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVehicleByPlates(r.Context(), plate)
	if err != nil {
		return nil, err
	}
	return &models.Expense{
		ExpenseFields: f,
		Plate:         v.Plates,
		Vehicle:       models.VehicleSummary{ID: v.ID, Brand: v.Brand, Model: v.Model, Plates: v.Plates},
	}, nil
}

func (s *Server) APIListExpensesHandler(w http.ResponseWriter, r *http.Request) {
	filter := db.ExpenseFilter{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("vehicleId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			sendFail(w, r, http.StatusBadRequest, "InvalidID")
			return
		}
		if _, err := s.store.GetVehicle(r.Context(), id); err != nil {
			s.sendError(w, r, err, "VehicleNotFound")
			return
		}
		filter.VehicleID = id
	}

	expenses, err := s.store.ListExpenses(r.Context(), filter)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, expenses)
}

func (s *Server) APIGetExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, e)
}

// APICreateExpenseHandler answers 404 when the plate names no vehicle.
func (s *Server) APICreateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e, err := s.expense(r, in, callerName(r))
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	if e, err = s.store.CreateExpense(r.Context(), e); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendSuccess(w, http.StatusCreated, e)
}

func (s *Server) APIUpdateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	existing, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}

	e, err := s.expense(r, in, existing.Responsible)
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	e.ID = id
	updated, err := s.store.UpdateExpense(r.Context(), e)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, updated)
}

func (s *Server) APIDeleteExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(i18n.DetectLanguage(r), "ExpenseDeleted")})
}

func externalExpense(in expenseInput, defaultResponsible string) (*models.ExternalExpense, error) {
	f, err := in.fields(defaultResponsible, "MissingExternalExpenseFields")
	if err != nil {
		return nil, err
	}
	return &models.ExternalExpense{ExpenseFields: f}, nil
}

func (s *Server) APIListExternalExpensesHandler(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExternalExpenses(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, expenses)
}

func (s *Server) APIGetExternalExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e, err := s.store.GetExternalExpense(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, e)
}

func (s *Server) APICreateExternalExpenseHandler(w http.ResponseWriter, r *http.Request) {
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e, err := externalExpense(in, callerName(r))
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	if e, err = s.store.CreateExternalExpense(r.Context(), e); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusCreated, e)
}

func (s *Server) APIUpdateExternalExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	var in expenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	existing, err := s.store.GetExternalExpense(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e, err := externalExpense(in, existing.Responsible)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	e.ID = id
	updated, err := s.store.UpdateExternalExpense(r.Context(), e)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, updated)
}

func (s *Server) APIDeleteExternalExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	if err := s.store.DeleteExternalExpense(r.Context(), id); err != nil {
		s.sendError(w, r, err, "ExpenseNotFound")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(i18n.DetectLanguage(r), "ExpenseDeleted")})
}
