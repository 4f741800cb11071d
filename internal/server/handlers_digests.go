package server

import (
	"net/http"
	"time"

	"github.com/thinkscotty/newsroom/internal/archive"
)

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	date, ok := s.pathDate(w, r)
	if !ok {
		return
	}
	digest, found := s.archive.Digest(r.Context(), date)
	if !found {
		jsonError(w, "No digest for "+date, http.StatusNotFound)
		return
	}
	digest.Normalize()
	jsonResponse(w, map[string]any{"date": date, "digest": digest})
}

func (s *Server) handleDigestImage(w http.ResponseWriter, r *http.Request) {
	date, ok := s.pathDate(w, r)
	if !ok {
		return
	}
	data := s.archive.Image(r.Context(), date)
	if len(data) == 0 {
		jsonError(w, "No image for "+date, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.archive.Stats(r.Context()))
}

// pathDate reads and validates the {date} path value, writing a 400 when it
// is not YYYY-MM-DD. The literal "today" maps to the current run date.
func (s *Server) pathDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.PathValue("date")
	if date == "today" {
		return s.runner.Today(), true
	}
	if _, err := time.Parse(archive.DateLayout, date); err != nil {
		jsonError(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return date, true
}
