// Package server is the JSON management surface: feed registry, runs,
// digests, stats and the automation API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/thinkscotty/newsroom/internal/config"
	"github.com/thinkscotty/newsroom/internal/database"
	"github.com/thinkscotty/newsroom/internal/feeds"
	"github.com/thinkscotty/newsroom/internal/models"
)

const sessionCookie = "newsroom_session"

// Archive is the document archive as the management surface uses it.
type Archive interface {
	Feeds(ctx context.Context) ([]string, error)
	AddFeed(ctx context.Context, url string) (bool, error)
	RemoveFeeds(ctx context.Context, urls []string) (int, error)
	Digest(ctx context.Context, date string) (models.AnalysisResult, bool)
	Image(ctx context.Context, date string) []byte
	Stats(ctx context.Context) models.Stats
	RecordVisit(ctx context.Context) error
}

// Runner starts pipeline runs and reports on them.
type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
	Start(ctx context.Context) (string, error)
	Status() (current models.RunReport, last *models.RunReport)
	Today() string
}

// DiscoverFunc resolves an HTML page to the feed it advertises.
type DiscoverFunc func(ctx context.Context, pageURL string) (string, error)

type Server struct {
	cfg      config.Config
	db       *database.DB
	archive  Archive
	runner   Runner
	discover DiscoverFunc
	logins   *rate.Limiter
	version  string
	httpSrv  *http.Server
}

func New(cfg config.Config, db *database.DB, arc Archive, runner Runner, version string) *Server {
	perMinute := max(cfg.Auth.LoginPerMinute, 1)
	return &Server{
		cfg:     cfg,
		db:      db,
		archive: arc,
		runner:  runner,
		discover: func(ctx context.Context, pageURL string) (string, error) {
			return feeds.Discover(ctx, pageURL, cfg.Feeds.UserAgent)
		},
		logins:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		version: version,
	}
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return recoveryMiddleware(loggingMiddleware(mux))
}

// Start sets up routes and starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	slog.Info("Starting server", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Auth routes (public)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Automation API, protected by API key
	mux.Handle("POST /api/v1/collect", s.requireAPIKey(http.HandlerFunc(s.handleCollect)))
	mux.Handle("GET /api/v1/digests/{date}", s.requireAPIKey(http.HandlerFunc(s.handleDigest)))

	// Management, protected by session auth
	mux.Handle("GET /api/feeds", s.requireAuth(http.HandlerFunc(s.handleFeedList)))
	mux.Handle("POST /api/feeds", s.requireAuth(http.HandlerFunc(s.handleFeedAdd)))
	mux.Handle("DELETE /api/feeds", s.requireAuth(http.HandlerFunc(s.handleFeedRemove)))
	mux.Handle("GET /api/feeds/suggestions", s.requireAuth(http.HandlerFunc(s.handleFeedSuggestions)))

	mux.Handle("POST /api/runs", s.requireAuth(http.HandlerFunc(s.handleRunStart)))
	mux.Handle("GET /api/runs", s.requireAuth(http.HandlerFunc(s.handleRunList)))

	mux.Handle("GET /api/digests/{date}", s.requireAuth(http.HandlerFunc(s.handleDigest)))
	mux.Handle("GET /api/digests/{date}/image", s.requireAuth(http.HandlerFunc(s.handleDigestImage)))
	mux.Handle("GET /api/stats", s.requireAuth(http.HandlerFunc(s.handleStats)))

	mux.Handle("GET /api/settings/apikey", s.requireAuth(http.HandlerFunc(s.handleAPIKeyShow)))
	mux.Handle("POST /api/settings/apikey/regenerate", s.requireAuth(http.HandlerFunc(s.handleAPIKeyRegenerate)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	current, _ := s.runner.Status()
	jsonResponse(w, map[string]any{"status": "ok", "version": s.version, "run_state": current.State})
}
