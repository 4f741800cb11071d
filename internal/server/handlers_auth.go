package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/thinkscotty/newsroom/internal/auth"
	"github.com/thinkscotty/newsroom/internal/models"
)

// isHTTPS checks if the original request was made over HTTPS by examining
// the X-Forwarded-Proto header (set by reverse proxies) or the TLS state.
func isHTTPS(r *http.Request) bool {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}
	return r.TLS != nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.logins.Allow() {
		w.Header().Set("Retry-After", "60")
		jsonError(w, "Too many login attempts", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !auth.CheckPassphrase(req.Passphrase, s.cfg.Auth.Passphrase) {
		slog.Debug("Login failed: wrong passphrase", "remote", r.RemoteAddr)
		jsonError(w, "Invalid passphrase", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken()
	if err != nil {
		slog.Error("Failed to generate session token", "error", err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	lifetime := time.Duration(max(s.cfg.Auth.SessionDays, 1)) * 24 * time.Hour
	sess := &models.Session{
		Token:     token,
		ExpiresAt: time.Now().Add(lifetime),
	}
	if err := s.db.CreateSession(sess); err != nil {
		slog.Error("Failed to create session", "error", err)
		jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(lifetime.Seconds()),
	})

	slog.Info("Management login", "remote", r.RemoteAddr)
	jsonResponse(w, map[string]any{"expires_at": sess.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.db.DeleteSession(cookie.Value); err != nil {
			slog.Warn("Failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusNoContent)
}
