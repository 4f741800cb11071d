package server

import (
	"log/slog"
	"net/http"

	"github.com/thinkscotty/newsroom/internal/apikey"
	"github.com/thinkscotty/newsroom/internal/database"
)

func (s *Server) handleAPIKeyShow(w http.ResponseWriter, r *http.Request) {
	key, err := s.db.GetSetting(database.SettingAPIKey)
	if err != nil {
		slog.Error("Failed to read API key", "error", err)
		jsonError(w, "Failed to read key", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{"configured": key != "", "api_key": apikey.Mask(key)})
}

func (s *Server) handleAPIKeyRegenerate(w http.ResponseWriter, r *http.Request) {
	newKey, err := apikey.Generate()
	if err != nil {
		slog.Error("Failed to generate API key", "error", err)
		jsonError(w, "Failed to generate key", http.StatusInternalServerError)
		return
	}

	if err := s.db.SetSetting(database.SettingAPIKey, newKey); err != nil {
		slog.Error("Failed to save API key", "error", err)
		jsonError(w, "Failed to save key", http.StatusInternalServerError)
		return
	}

	slog.Info("API key regenerated")
	jsonResponse(w, map[string]any{"configured": true, "api_key": newKey})
}
