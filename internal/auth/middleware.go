package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kuitang/quicknotes/internal/obs"
)

type contextKey string

const userIDKey contextKey = "userID"

// Middleware validates sessions and stamps the user id into request context.
type Middleware struct {
	sessions *SessionService
}

// NewMiddleware creates auth middleware backed by the session service.
func NewMiddleware(sessions *SessionService) *Middleware {
	return &Middleware{sessions: sessions}
}

// RequireAuth rejects unauthenticated requests with 401. Intended for
// API-style endpoints where a redirect would be wrong.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// RequireAuthWithRedirect sends unauthenticated browsers to the login page,
// carrying the original path so login can return them.
func (m *Middleware) RequireAuthWithRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			target := "/login"
			if r.URL.Path != "" && r.URL.Path != "/" {
				target += "?return_to=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// OptionalAuth stamps the user id when a valid session exists but lets the
// request through either way. Used on pages that render both states.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.authenticate(r); ok {
			r = r.WithContext(withUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return "", false
	}
	userID, err := m.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		if !isNotFound(err) {
			obs.From(r.Context()).Error("session validation failed", "error", err)
		}
		return "", false
	}
	return userID, true
}

func isNotFound(err error) bool {
	return err == ErrSessionNotFound
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the authenticated user id from the request context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// IsAuthenticated reports whether the request carries a validated session.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetUserID(ctx)
	return ok
}
