package handlers

import (
	"net/http"
	"strings"

	"fleetdash/auth"
	"fleetdash/i18n"
	"fleetdash/models"
)

// userInput is the body of create and update requests. Nil capability
// flags keep the default (create) or the stored value (update).
type userInput struct {
	Email                   string `json:"email"`
	Password                string `json:"password"`
	FullName                string `json:"full_name"`
	Role                    string `json:"role"`
	CanViewExpenses         *bool  `json:"can_view_expenses"`
	CanViewExternalExpenses *bool  `json:"can_view_external_expenses"`
	CanViewVehicles         *bool  `json:"can_view_vehicles"`
	CanViewUsers            *bool  `json:"can_view_users"`
}

func (in *userInput) applyCapabilities(c *models.Capabilities) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Expenses, in.CanViewExpenses)
	set(&c.ExternalExpenses, in.CanViewExternalExpenses)
	set(&c.Vehicles, in.CanViewVehicles)
	set(&c.Users, in.CanViewUsers)
}

func (s *Server) APIListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	public := make([]models.PublicUser, len(users))
	for i := range users {
		public[i] = users[i].Public()
	}
	sendSuccess(w, http.StatusOK, public)
}

func (s *Server) APIGetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	u, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, u.Public())
}

func (s *Server) APICreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Email == "" || in.Password == "" || in.FullName == "" {
		sendFail(w, r, http.StatusBadRequest, "MissingUserFields")
		return
	}

	role := models.RoleUser
	if in.Role != "" {
		role = models.Role(in.Role)
	}
	if !role.Valid() {
		sendFail(w, r, http.StatusBadRequest, "InvalidRole")
		return
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}

	caps := models.DefaultCapabilities()
	in.applyCapabilities(&caps)
	u, err := s.store.CreateUser(r.Context(), &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         role,
		Capabilities: caps,
	})
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}

	s.log(r).Info("user created", "user_id", u.ID, "by", auth.PrincipalFromContext(r.Context()).ID)
	sendSuccess(w, http.StatusCreated, u.Public())
}

// APIUpdateUserHandler changes only the fields present in the body. An
// empty password keeps the stored hash.
func (s *Server) APIUpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	var in userInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}

	u, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}

	if v := strings.TrimSpace(in.Email); v != "" {
		u.Email = v
	}
	if v := strings.TrimSpace(in.FullName); v != "" {
		u.FullName = v
	}
	if in.Role != "" {
		role := models.Role(in.Role)
		if !role.Valid() {
			sendFail(w, r, http.StatusBadRequest, "InvalidRole")
			return
		}
		u.Role = role
	}
	in.applyCapabilities(&u.Capabilities)
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			s.sendError(w, r, err, "UserNotFound")
			return
		}
		u.PasswordHash = hash
	}

	if err := s.store.UpdateUser(r.Context(), u); err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, u.Public())
}

func (s *Server) APIDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	p := auth.PrincipalFromContext(r.Context())
	if err := auth.CheckSelfDelete(p, id); err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.sendError(w, r, err, "UserNotFound")
		return
	}

	s.log(r).Info("user deleted", "user_id", id, "by", p.ID)
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(i18n.DetectLanguage(r), "UserDeleted")})
}
