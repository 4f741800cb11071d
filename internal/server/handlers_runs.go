package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/thinkscotty/newsroom/internal/models"
	"github.com/thinkscotty/newsroom/internal/pipeline"
)

func (s *Server) handleRunStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.runner.Start(r.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		jsonError(w, "A run is already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("Failed to start run", "error", err)
		jsonError(w, "Failed to start run", http.StatusInternalServerError)
		return
	}
	jsonStatus(w, http.StatusAccepted, map[string]any{"run_id": id})
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	recent, err := s.db.RecentRuns(limit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		jsonError(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	current, last := s.runner.Status()
	resp := map[string]any{"current": current, "recent": recent}
	if last != nil {
		resp["last"] = last
	}
	jsonResponse(w, resp)
}

// handleCollect runs the pipeline synchronously for cron-style callers.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("Could not clear write deadline", "error", err)
	}

	report, err := s.runner.Run(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		jsonError(w, "A run is already in progress", http.StatusConflict)
	case err != nil || report.State == models.StateFailed:
		jsonStatus(w, http.StatusInternalServerError, report)
	default:
		jsonResponse(w, report)
	}
}
