package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"orderdesk/pkg/otel"
	"orderdesk/pkg/session"
)

// loginRequest represents login credentials.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userKey struct{}

// UserFromContext returns the authenticated user name, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok
}

// loginHandler handles user login and session creation.
// @Summary Login
// @Description Authenticates user and sets session cookie
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Router /login [post]
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	if len(s.users) > 0 {
		want, ok := s.users[req.Username]
		if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(req.Password)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
	}
	if s.sessions == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	sid, err := s.sessions.Create(ctx, req.Username)
	if err != nil {
		s.log.Error(ctx, "create session", "error", err)
		writeError(w, http.StatusInternalServerError, "session error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(s.sessions.TTL()),
		HttpOnly: true,
	})
	s.log.Info(ctx, "login", "user", req.Username)
	w.WriteHeader(http.StatusOK)
}

// authMiddleware ensures a valid session exists.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.sessions.User(r.Context(), c.Value)
		if err != nil || user == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
