package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kuitang/quicknotes/internal/obs"
)

// Handlers serves the form-based auth endpoints.
type Handlers struct {
	users         *UserService
	sessions      *SessionService
	secureCookies bool
}

// NewHandlers creates the auth handlers.
func NewHandlers(users *UserService, sessions *SessionService, secureCookies bool) *Handlers {
	return &Handlers{
		users:         users,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes registers the auth endpoints on the mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
}

// handleRegister creates an account from the registration form and logs the
// new user straight in.
func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	log := obs.From(r.Context())

	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "/register", "invalid form submission")
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if password != confirm {
		redirectWithError(w, r, "/register", "passwords do not match")
		return
	}

	user, err := h.users.Register(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountExists):
			redirectWithError(w, r, "/register", "an account with that email already exists")
		case errors.Is(err, ErrWeakPassword):
			redirectWithError(w, r, "/register", ErrWeakPassword.Error())
		default:
			log.Error("registration failed", "error", err)
			redirectWithError(w, r, "/register", "registration failed, please try again")
		}
		return
	}

	if err := h.startSession(w, r, user.ID); err != nil {
		log.Error("session creation failed after registration", "error", err, "user_id", user.ID)
		redirectWithError(w, r, "/login", "account created, please sign in")
		return
	}

	log.Info("user registered", "user_id", user.ID)
	http.Redirect(w, r, "/notes", http.StatusFound)
}

// handleLogin verifies credentials and establishes a session.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := obs.From(r.Context())

	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "/login", "invalid form submission")
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	user, err := h.users.VerifyLogin(r.Context(), email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			log.Error("login failed", "error", err)
		}
		redirectWithError(w, r, "/login", "invalid email or password")
		return
	}

	if err := h.startSession(w, r, user.ID); err != nil {
		log.Error("session creation failed", "error", err, "user_id", user.ID)
		redirectWithError(w, r, "/login", "sign in failed, please try again")
		return
	}

	log.Info("user logged in", "user_id", user.ID)
	http.Redirect(w, r, safeReturnTo(r.FormValue("return_to")), http.StatusFound)
}

// handleLogout deletes the session and clears the cookie. Always redirects
// to the landing page, even when no session existed.
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := GetFromRequest(r); err == nil {
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).Error("session deletion failed", "error", err)
		}
	}
	ClearCookie(w, h.secureCookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		return err
	}
	SetCookie(w, sessionID, h.sessions.Duration(), h.secureCookies)
	return nil
}

// safeReturnTo only honors same-site relative paths, so login cannot be used
// as an open redirect.
func safeReturnTo(returnTo string) string {
	if returnTo == "" {
		return "/notes"
	}
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		return "/notes"
	}
	return returnTo
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, msg string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(msg), http.StatusFound)
}
