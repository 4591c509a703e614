package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetdash/auth"
	"fleetdash/db"
	"fleetdash/i18n"
	"fleetdash/models"

	"github.com/dchest/captcha"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func sendSuccess(w http.ResponseWriter, status int, data any) {
	sendJSONResponse(w, status, APIResponse{Status: "success", Data: data})
}

func sendFail(w http.ResponseWriter, r *http.Request, status int, key string) {
	sendJSONResponse(w, status, APIResponse{Status: "error", Message: i18n.T(i18n.DetectLanguage(r), key)})
}

// validationError is a 400 carrying a message key.
type validationError struct {
	key string
}

func (e validationError) Error() string {
	return "validation failed: " + e.key
}

// sendError maps an error onto the API status codes. notFoundKey names the
// message for db.ErrNotFound. Unclassified errors are logged and reported
// as a bare 500.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error, notFoundKey string) {
	var dup *db.DuplicateError
	var invalid validationError

	switch {
	case auth.IsAuthenticationError(err):
		sendFail(w, r, http.StatusUnauthorized, "NotAuthenticated")
	case auth.IsAuthorizationError(err):
		sendFail(w, r, http.StatusForbidden, "Forbidden")
	case errors.Is(err, auth.ErrSelfDeleteForbidden):
		sendFail(w, r, http.StatusBadRequest, "CannotDeleteSelf")
	case errors.As(err, &dup):
		sendFail(w, r, http.StatusConflict, duplicateKey(dup.Field))
	case errors.Is(err, db.ErrInUse):
		sendFail(w, r, http.StatusConflict, "VehicleHasExpenses")
	case errors.Is(err, db.ErrNotFound):
		sendFail(w, r, http.StatusNotFound, notFoundKey)
	case errors.As(err, &invalid):
		sendFail(w, r, http.StatusBadRequest, invalid.key)
	default:
		s.log(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		sendFail(w, r, http.StatusInternalServerError, "InternalServerError")
	}
}

func duplicateKey(field string) string {
	switch field {
	case "email":
		return "EmailAlreadyRegistered"
	case "plates":
		return "PlatesAlreadyRegistered"
	case "serial":
		return "SerialAlreadyRegistered"
	}
	return "AlreadyRegistered"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		return validationError{key: "InvalidRequestBody"}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError{key: "InvalidID"}
	}
	return id, nil
}

// parseDate accepts an empty string, YYYY-MM-DD or RFC 3339.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, validationError{key: "InvalidDate"}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

type loginInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	CaptchaID       string `json:"captcha_id"`
	CaptchaSolution string `json:"captcha_solution"`
}

// APILoginHandler verifies credentials and sets both session cookies.
// Unknown email and wrong password produce the same response.
func (s *Server) APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	ip := getClientIP(r)
	if !s.limiter.Allow(ip) {
		sendFail(w, r, http.StatusTooManyRequests, "TooManyAttempts")
		return
	}

	var input loginInput
	if err := decodeJSON(w, r, &input); err != nil {
		s.sendError(w, r, err, "NotFound")
		return
	}
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		sendFail(w, r, http.StatusBadRequest, "MissingCredentials")
		return
	}

	if s.limiter.CaptchaRequired(ip) && !captcha.VerifyString(input.CaptchaID, input.CaptchaSolution) {
		id := captcha.New()
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{
			Status:  "error",
			Message: i18n.T(lang, "CaptchaRequired"),
			Data:    map[string]string{"captcha_id": id, "captcha_url": "/captcha/" + id + ".png"},
		})
		return
	}

	sess, err := s.issuer.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.limiter.RecordFailure(ip)
			sendFail(w, r, http.StatusUnauthorized, "InvalidCredentials")
			return
		}
		s.sendError(w, r, err, "NotFound")
		return
	}

	s.limiter.Reset(ip)
	s.issuer.SetCookies(w, sess.Token)
	s.log(r).Info("user logged in", "user_id", sess.Profile.ID)
	sendJSONResponse(w, http.StatusOK, APIResponse{
		Status:  "success",
		Message: i18n.T(lang, "LoginSuccessful"),
		Data:    map[string]any{"user": sess.Profile},
	})
}

func (s *Server) APILogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.issuer.ClearCookies(w)
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(i18n.DetectLanguage(r), "LoggedOut")})
}

type profile struct {
	ID           int64               `json:"id"`
	Email        string              `json:"email"`
	FullName     string              `json:"full_name"`
	Role         models.Role         `json:"role"`
	Capabilities models.Capabilities `json:"capabilities"`
}

// APIUserHandler returns the caller as currently stored, not as it was at
// login time.
func (s *Server) APIUserHandler(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	sendSuccess(w, http.StatusOK, profile{
		ID:           p.ID,
		Email:        p.Email,
		FullName:     p.FullName,
		Role:         p.Role,
		Capabilities: p.Capabilities,
	})
}

var themes = map[string]bool{"light": true, "dark": true, "system": true}

func (s *Server) theme(r *http.Request) string {
	sess, err := s.prefs.Get(r, auth.PrefsSessionName)
	if err != nil {
		return "system"
	}
	if t, ok := sess.Values["theme"].(string); ok && themes[t] {
		return t
	}
	return "system"
}

func (s *Server) APIGetThemeHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, map[string]string{"theme": s.theme(r)})
}

func (s *Server) APISetThemeHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		s.sendError(w, r, err, "NotFound")
		return
	}
	if !themes[input.Theme] {
		sendFail(w, r, http.StatusBadRequest, "InvalidTheme")
		return
	}

	// a cookie that no longer decodes is replaced with a fresh session
	sess, _ := s.prefs.Get(r, auth.PrefsSessionName)
	sess.Values["theme"] = input.Theme
	if err := sess.Save(r, w); err != nil {
		s.sendError(w, r, err, "NotFound")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{
		Status:  "success",
		Message: i18n.T(i18n.DetectLanguage(r), "ThemeSaved"),
		Data:    map[string]string{"theme": input.Theme},
	})
}

// stats counts every resource class the caller may view. Users are
// counted for admins only.
func (s *Server) stats(r *http.Request, p *auth.Principal) (models.Stats, error) {
	ctx := r.Context()
	var out models.Stats

	counters := []struct {
		allowed bool
		count   func() (int, error)
		dst     **int
	}{
		{p.Can(models.CapVehicles), func() (int, error) { return s.store.CountVehicles(ctx) }, &out.Vehicles},
		{p.Can(models.CapExpenses), func() (int, error) { return s.store.CountExpenses(ctx) }, &out.Expenses},
		{p.Can(models.CapExternalExpenses), func() (int, error) { return s.store.CountExternalExpenses(ctx) }, &out.ExternalExpenses},
		{p.IsAdmin(), func() (int, error) { return s.store.CountUsers(ctx) }, &out.Users},
	}
	for _, c := range counters {
		if !c.allowed {
			continue
		}
		n, err := c.count()
		if err != nil {
			return models.Stats{}, err
		}
		*c.dst = &n
	}
	return out, nil
}

func (s *Server) APIStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats(r, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		s.sendError(w, r, err, "NotFound")
		return
	}
	sendSuccess(w, http.StatusOK, stats)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log(r).Error("health check failed", "error", err)
		sendFail(w, r, http.StatusServiceUnavailable, "InternalServerError")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success"})
}
