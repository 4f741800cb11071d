package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thinkscotty/newsroom/internal/feeds"
)

func (s *Server) handleFeedList(w http.ResponseWriter, r *http.Request) {
	urls, err := s.archive.Feeds(r.Context())
	if err != nil {
		slog.Error("Failed to read feed registry", "error", err)
		jsonError(w, "Failed to read feed registry", http.StatusBadGateway)
		return
	}
	jsonResponse(w, map[string]any{"urls": urls})
}

func (s *Server) handleFeedAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Discover bool   `json:"discover"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	url := strings.TrimSpace(req.URL)
	if feed, ok := feeds.SubredditFeed(url); ok {
		url = feed
		req.Discover = false
	}
	if err := feeds.ValidateURL(url); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Discover {
		found, err := s.discover(r.Context(), url)
		if err != nil {
			if errors.Is(err, feeds.ErrNoFeed) {
				jsonError(w, "No feed found on that page", http.StatusUnprocessableEntity)
				return
			}
			slog.Warn("Feed discovery failed", "url", url, "error", err)
			jsonError(w, "Could not load that page", http.StatusBadGateway)
			return
		}
		url = found
	}

	added, err := s.archive.AddFeed(r.Context(), url)
	if err != nil {
		slog.Error("Failed to add feed", "url", url, "error", err)
		jsonError(w, "Failed to save feed registry", http.StatusBadGateway)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
		slog.Info("Feed added", "url", url)
	}
	jsonStatus(w, status, map[string]any{"url": url, "added": added})
}

func (s *Server) handleFeedRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		jsonError(w, "urls is required", http.StatusBadRequest)
		return
	}

	removed, err := s.archive.RemoveFeeds(r.Context(), req.URLs)
	if err != nil {
		slog.Error("Failed to remove feeds", "error", err)
		jsonError(w, "Failed to save feed registry", http.StatusBadGateway)
		return
	}
	slog.Info("Feeds removed", "count", removed)
	jsonResponse(w, map[string]any{"removed": removed})
}

func (s *Server) handleFeedSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := feeds.Suggest(r.URL.Query().Get("q"))
	if suggestions == nil {
		suggestions = []feeds.CatalogFeed{}
	}
	jsonResponse(w, map[string]any{"feeds": suggestions})
}
