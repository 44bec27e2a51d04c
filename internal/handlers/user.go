package handlers

import (
	"net/http"

	"github.com/jason-s-yu/songdecks/internal/accounts"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/middleware"
	"github.com/jason-s-yu/songdecks/internal/models"
)

type loginRequest struct {
	// Login is an email address or a username.
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

func (a *API) accountRoutes(mux *http.ServeMux) {
	limiter := middleware.NewRateLimiter(a.opts.LoginRatePerMin, a.logger)

	mux.HandleFunc("POST /user/create", a.handle(http.StatusCreated, func(r *http.Request, _ auth.Identity) (any, error) {
		var in accounts.RegisterInput
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return a.svc.Accounts.Register(r.Context(), in)
	}))
	mux.Handle("POST /user/login", limiter.Middleware(http.HandlerFunc(a.login)))
	mux.HandleFunc("POST /user/logout", a.logout)
	mux.HandleFunc("POST /user/request_tester", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.RequestTester(r.Context(), caller)
	}))
	mux.HandleFunc("POST /user/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathUUID(r, "id")
		if err != nil {
			return nil, err
		}
		var in accounts.ProfileUpdate
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return a.svc.Accounts.UpdateProfile(r.Context(), caller, id, in)
	}))
	mux.HandleFunc("GET /user/current", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.Current(r.Context(), caller)
	}))

	mux.HandleFunc("GET /admin/users", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.Users(r.Context(), caller, r.URL.Query().Get("role"))
	}))
	mux.HandleFunc("GET /admin/testers", a.byRole(models.RoleTester))
	mux.HandleFunc("GET /admin/admins", a.byRole(models.RoleAdmin))
	mux.HandleFunc("POST /admin/users/{username}/reset_password", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.ResetPassword(r.Context(), caller, r.PathValue("username"))
	}))
	mux.HandleFunc("POST /admin/users/{username}/role/{role}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.ToggleRole(r.Context(), caller, r.PathValue("username"), r.PathValue("role"))
	}))
}

func (a *API) byRole(role string) http.HandlerFunc {
	return a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Accounts.Users(r.Context(), caller, role)
	})
}

// login issues a session token and sets it as the auth cookie.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req loginRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, token, err := a.svc.Accounts.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		MaxAge:   a.svc.Sessions.MaxAge(),
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	a.writeJSON(w, http.StatusOK, envelope{Success: true, Response: loginResponse{Token: token, Profile: p}})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		Path:     "/",
	})
	a.writeJSON(w, http.StatusOK, envelope{Success: true, Response: "logged out"})
}
