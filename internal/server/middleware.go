package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thinkscotty/newsroom/internal/database"
)

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
		)
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "error", err, "path", r.URL.Path)
				jsonError(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth checks for a valid session cookie. The first authenticated
// request of a session is counted as a visit.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			jsonError(w, "Login required", http.StatusUnauthorized)
			return
		}

		sess, err := s.db.GetSession(cookie.Value)
		if err != nil {
			jsonError(w, "Login required", http.StatusUnauthorized)
			return
		}

		if !sess.Visited {
			s.countVisit(r, sess.Token)
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) countVisit(r *http.Request, token string) {
	first, err := s.db.MarkSessionVisited(token)
	if err != nil {
		slog.Error("Failed to mark session visited", "error", err)
		return
	}
	if !first {
		return
	}
	if err := s.archive.RecordVisit(r.Context()); err != nil {
		slog.Warn("Failed to record visit", "error", err)
	}
}

// requireAPIKey checks for a valid API key via Bearer token or query parameter.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var providedKey string

		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			providedKey = strings.TrimPrefix(auth, "Bearer ")
		}
		if providedKey == "" {
			providedKey = r.URL.Query().Get("api_key")
		}

		if providedKey == "" {
			jsonError(w, "API key required", http.StatusUnauthorized)
			return
		}

		storedKey, err := s.db.GetSetting(database.SettingAPIKey)
		if err != nil || storedKey == "" {
			slog.Error("API key not configured")
			jsonError(w, "API key not configured", http.StatusInternalServerError)
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(storedKey)) != 1 {
			jsonError(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
