package auth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/pep299/smartnotes/internal/store"
)

type contextKey struct{}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by RequireLogin, or nil
func UserFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(contextKey{}).(*store.User)
	return user
}

// RequireLogin lets through requests with a valid session. Page requests without one are
// redirected to /login, API requests get a 401 JSON error.
func (s *Service) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.CurrentUser(r)
		if err != nil {
			if err != ErrNoSession {
				logger := log.New(funcframework.LogWriter(r.Context()), "", 0)
				logger.Printf("session_load_failed path=%s error=%v", r.URL.Path, err)
			}
			if isPageRequest(r) {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin is RequireLogin restricted to the administrator. Other users are sent back
// to / on pages and get a 403 on API calls.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return s.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.IsAdmin(UserFromContext(r.Context())) {
			if isPageRequest(r) {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			writeError(w, http.StatusForbidden, "Access denied. Admin privileges required.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// isPageRequest reports whether a browser is navigating to r, as opposed to a script call
func isPageRequest(r *http.Request) bool {
	if r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
