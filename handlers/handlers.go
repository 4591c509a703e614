package handlers

import (
	"crypto/sha256"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"fleetdash/auth"
	"fleetdash/config"
	"fleetdash/crypto"
	"fleetdash/db"
	"fleetdash/i18n"
	"fleetdash/logging"
	"fleetdash/models"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Server holds the dependencies shared by every handler.
type Server struct {
	cfg      *config.Config
	store    *db.Store
	hasher   crypto.Hasher
	codec    *auth.TokenCodec
	issuer   *auth.Issuer
	resolver *auth.Resolver
	prefs    sessions.Store
	limiter  *rateLimiter
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, store *db.Store, logger *slog.Logger) *Server {
	hasher := crypto.NewBcryptHasher(cfg.Auth.BcryptCost)
	codec := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret))
	secure := cfg.SecureCookies()
	return &Server{
		cfg:      cfg,
		store:    store,
		hasher:   hasher,
		codec:    codec,
		issuer:   auth.NewIssuer(store, hasher, codec, secure),
		resolver: auth.NewResolver(store, codec),
		prefs:    auth.NewPrefsStore(cfg.Auth.SessionKey, secure),
		limiter:  newRateLimiter(),
		logger:   logger,
	}
}

// Routes builds the full handler tree: JSON API, HTML pages, captcha
// images, static assets and the health check.
func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/login", s.APILoginHandler)
	api.HandleFunc("POST /api/logout", s.APILogoutHandler)
	api.Handle("GET /api/user", s.authed(s.APIUserHandler))
	api.Handle("GET /api/user/theme", s.authed(s.APIGetThemeHandler))
	api.Handle("POST /api/user/theme", s.authed(s.APISetThemeHandler))
	api.Handle("GET /api/stats", s.authed(s.APIStatsHandler))

	api.Handle("GET /api/users", s.adminOnly(s.APIListUsersHandler))
	api.Handle("POST /api/users", s.adminOnly(s.APICreateUserHandler))
	api.Handle("GET /api/users/{id}", s.adminOnly(s.APIGetUserHandler))
	api.Handle("PUT /api/users/{id}", s.adminOnly(s.APIUpdateUserHandler))
	api.Handle("DELETE /api/users/{id}", s.adminOnly(s.APIDeleteUserHandler))

	api.Handle("GET /api/vehicles", s.withCapability(models.CapVehicles, s.APIListVehiclesHandler))
	api.Handle("POST /api/vehicles", s.withCapability(models.CapVehicles, s.APICreateVehicleHandler))
	api.Handle("GET /api/vehicles/{id}", s.withCapability(models.CapVehicles, s.APIGetVehicleHandler))
	api.Handle("PUT /api/vehicles/{id}", s.withCapability(models.CapVehicles, s.APIUpdateVehicleHandler))
	api.Handle("DELETE /api/vehicles/{id}", s.withCapability(models.CapVehicles, s.APIDeleteVehicleHandler))

	api.Handle("GET /api/expenses", s.withCapability(models.CapExpenses, s.APIListExpensesHandler))
	api.Handle("POST /api/expenses", s.withCapability(models.CapExpenses, s.APICreateExpenseHandler))
	api.Handle("GET /api/expenses/{id}", s.withCapability(models.CapExpenses, s.APIGetExpenseHandler))
	api.Handle("PUT /api/expenses/{id}", s.withCapability(models.CapExpenses, s.APIUpdateExpenseHandler))
	api.Handle("DELETE /api/expenses/{id}", s.withCapability(models.CapExpenses, s.APIDeleteExpenseHandler))

	api.Handle("GET /api/external-expenses", s.withCapability(models.CapExternalExpenses, s.APIListExternalExpensesHandler))
	api.Handle("POST /api/external-expenses", s.withCapability(models.CapExternalExpenses, s.APICreateExternalExpenseHandler))
	api.Handle("GET /api/external-expenses/{id}", s.withCapability(models.CapExternalExpenses, s.APIGetExternalExpenseHandler))
	api.Handle("PUT /api/external-expenses/{id}", s.withCapability(models.CapExternalExpenses, s.APIUpdateExternalExpenseHandler))
	api.Handle("DELETE /api/external-expenses/{id}", s.withCapability(models.CapExternalExpenses, s.APIDeleteExternalExpenseHandler))

	pages := http.NewServeMux()
	pages.HandleFunc("GET /login", s.LoginPageHandler)
	pages.HandleFunc("POST /login", s.LoginHandler)
	pages.HandleFunc("POST /logout", s.LogoutHandler)
	pages.HandleFunc("GET /{$}", s.DashboardHandler)
	pages.HandleFunc("GET /vehicles", s.VehiclesPageHandler)
	pages.HandleFunc("GET /expenses", s.ExpensesPageHandler)
	pages.HandleFunc("GET /external-expenses", s.ExternalExpensesPageHandler)
	pages.HandleFunc("GET /users", s.UsersPageHandler)

	static, _ := fs.Sub(staticFS, "static")

	mux := http.NewServeMux()
	mux.Handle("/api/", CORSMiddleware(s.cfg.Server.AllowedOrigins)(api))
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.Handle("/captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.Handle("/", s.csrfProtect(pages))

	return RequestLogger(s.logger)(SecurityHeadersMiddleware(auth.Gate(mux)))
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.resolver.Middleware(h)
}

func (s *Server) adminOnly(h http.HandlerFunc) http.Handler {
	return s.resolver.Middleware(auth.AdminMiddleware()(h))
}

func (s *Server) withCapability(c models.Capability, h http.HandlerFunc) http.Handler {
	return s.resolver.Middleware(auth.CapabilityMiddleware(c)(h))
}

// csrfProtect guards the HTML forms. Requests that arrived over plain HTTP
// are marked so the Referer check only applies behind TLS.
func (s *Server) csrfProtect(next http.Handler) http.Handler {
	key := sha256.Sum256([]byte(s.cfg.Auth.SessionKey + "csrf"))
	protect := csrf.Protect(key[:],
		csrf.Secure(s.cfg.SecureCookies()),
		csrf.Path("/"),
	)(next)
	if s.cfg.SecureCookies() {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (s *Server) log(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), s.logger)
}

// pagePrincipal resolves the caller of a page request. On an
// authentication failure both cookies are cleared and the browser is sent
// to the login page, so a forged flag cookie cannot loop through the gate.
func (s *Server) pagePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, err := s.resolver.Resolve(r)
	if err == nil {
		return p, true
	}
	if auth.IsAuthenticationError(err) {
		s.issuer.ClearCookies(w)
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return nil, false
	}
	s.log(r).Error("resolving page principal", "error", err)
	http.Error(w, i18n.T(i18n.DetectLanguage(r), "InternalServerError"), http.StatusInternalServerError)
	return nil, false
}

func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	data := map[string]any{}

	if sess, err := s.prefs.Get(r, auth.PrefsSessionName); err == nil {
		var messages []string
		for _, f := range sess.Flashes() {
			if key, ok := f.(string); ok {
				messages = append(messages, i18n.T(lang, key))
			}
		}
		if len(messages) > 0 {
			if err := sess.Save(r, w); err != nil {
				s.log(r).Error("saving preferences session", "error", err)
			}
			data["Errors"] = messages
		}
	}
	if s.limiter.CaptchaRequired(getClientIP(r)) {
		data["CaptchaID"] = captcha.New()
	}
	s.renderTemplate(w, r, "login.html", data)
}

// LoginHandler handles the HTML login form. Every failure goes back to the
// login page with a flash message.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if !s.limiter.Allow(ip) {
		s.flashAndRedirect(w, r, "TooManyAttempts")
		return
	}
	if s.limiter.CaptchaRequired(ip) &&
		!captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha_solution")) {
		s.flashAndRedirect(w, r, "CaptchaRequired")
		return
	}

	email, password := r.FormValue("email"), r.FormValue("password")
	if email == "" || password == "" {
		s.flashAndRedirect(w, r, "MissingCredentials")
		return
	}

	sess, err := s.issuer.Login(r.Context(), email, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log(r).Error("login failed", "error", err)
			s.flashAndRedirect(w, r, "InternalServerError")
			return
		}
		s.limiter.RecordFailure(ip)
		s.flashAndRedirect(w, r, "InvalidCredentials")
		return
	}

	s.limiter.Reset(ip)
	s.issuer.SetCookies(w, sess.Token)
	s.log(r).Info("user logged in", "user_id", sess.Profile.ID)
	http.Redirect(w, r, auth.HomePath, http.StatusSeeOther)
}

func (s *Server) flashAndRedirect(w http.ResponseWriter, r *http.Request, key string) {
	if sess, err := s.prefs.Get(r, auth.PrefsSessionName); err == nil {
		sess.AddFlash(key)
		if err := sess.Save(r, w); err != nil {
			s.log(r).Error("saving flash message", "error", err)
		}
	} else {
		s.log(r).Warn("reading preferences session", "error", err)
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.issuer.ClearCookies(w)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pagePrincipal(w, r)
	if !ok {
		return
	}
	stats, err := s.stats(r, p)
	if err != nil {
		s.log(r).Error("loading stats", "error", err)
		http.Error(w, i18n.T(i18n.DetectLanguage(r), "InternalServerError"), http.StatusInternalServerError)
		return
	}
	s.renderPage(w, r, p, "dashboard.html", map[string]any{"Stats": stats})
}

func (s *Server) VehiclesPageHandler(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, "vehicles.html", func(p *auth.Principal) bool { return p.Can(models.CapVehicles) },
		func(q string) (any, error) { return s.store.ListVehicles(r.Context(), q) })
}

func (s *Server) ExpensesPageHandler(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, "expenses.html", func(p *auth.Principal) bool { return p.Can(models.CapExpenses) },
		func(q string) (any, error) { return s.store.ListExpenses(r.Context(), db.ExpenseFilter{Query: q}) })
}

func (s *Server) ExternalExpensesPageHandler(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, "external_expenses.html", func(p *auth.Principal) bool { return p.Can(models.CapExternalExpenses) },
		func(q string) (any, error) { return s.store.ListExternalExpenses(r.Context(), q) })
}

// UsersPageHandler needs both the users capability (to see the section)
// and the admin role (to read the accounts).
func (s *Server) UsersPageHandler(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, "users.html", func(p *auth.Principal) bool { return p.Can(models.CapUsers) && p.IsAdmin() },
		func(q string) (any, error) {
			users, err := s.store.ListUsers(r.Context(), q)
			if err != nil {
				return nil, err
			}
			public := make([]models.PublicUser, len(users))
			for i := range users {
				public[i] = users[i].Public()
			}
			return public, nil
		})
}

func (s *Server) listPage(w http.ResponseWriter, r *http.Request, name string,
	allowed func(*auth.Principal) bool, load func(q string) (any, error)) {
	p, ok := s.pagePrincipal(w, r)
	if !ok {
		return
	}
	if !allowed(p) {
		s.renderPage(w, r, p, name, map[string]any{"Denied": true})
		return
	}

	q := r.URL.Query().Get("q")
	items, err := load(q)
	if err != nil {
		s.log(r).Error("loading page data", "page", name, "error", err)
		http.Error(w, i18n.T(i18n.DetectLanguage(r), "InternalServerError"), http.StatusInternalServerError)
		return
	}
	s.renderPage(w, r, p, name, map[string]any{"Items": items, "Query": q})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, p *auth.Principal, name string, data map[string]any) {
	data["User"] = p
	data["IsAdmin"] = p.IsAdmin()
	data["Theme"] = s.theme(r)
	s.renderTemplate(w, r, name, data)
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	lang := i18n.DetectLanguage(r)

	funcMap := template.FuncMap{
		"T": func(key string) string {
			return i18n.T(lang, key)
		},
		"date": formatDate,
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templatesFS, "templates/layout.html", "templates/"+name)
	if err != nil {
		s.log(r).Error("parsing template", "template", name, "error", err)
		http.Error(w, i18n.T(lang, "InternalServerError"), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["AppName"]; !exists {
		data["AppName"] = s.cfg.AppName
	}
	data["Lang"] = lang
	data["csrfField"] = csrf.TemplateField(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.log(r).Error("rendering template", "template", name, "error", err)
	}
}
