package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thinkscotty/newsroom/internal/archive"
	"github.com/thinkscotty/newsroom/internal/config"
	"github.com/thinkscotty/newsroom/internal/database"
	"github.com/thinkscotty/newsroom/internal/feeds"
	"github.com/thinkscotty/newsroom/internal/models"
	"github.com/thinkscotty/newsroom/internal/pipeline"
	"github.com/thinkscotty/newsroom/internal/store"
)

type fakeRunner struct {
	mu      sync.Mutex
	busy    bool
	runs    int
	started int
	report  models.RunReport
}

func (f *fakeRunner) Run(context.Context) (models.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return models.RunReport{}, pipeline.ErrRunInProgress
	}
	f.runs++
	return f.report, nil
}

func (f *fakeRunner) Start(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return "", pipeline.ErrRunInProgress
	}
	f.started++
	return "run-1", nil
}

func (f *fakeRunner) Status() (models.RunReport, *models.RunReport) {
	return models.RunReport{State: models.StateIdle}, nil
}

func (f *fakeRunner) Today() string { return "2026-10-17" }

type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *database.DB
	arc     *archive.Archive
	runner  *fakeRunner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultConfig()
	cfg.Auth.Passphrase = "letmein"
	cfg.Auth.LoginPerMinute = 3

	arc := archive.New(store.New(store.NewMemory()), 0)
	runner := &fakeRunner{report: models.RunReport{ID: "r", State: models.StateDone, Items: 3}}
	srv := New(cfg, db, arc, runner, "test")
	return &testEnv{srv: srv, handler: srv.Handler(), db: db, arc: arc, runner: runner}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(t, "POST", "/login", `{"passphrase":"letmein"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			require.True(t, c.HttpOnly)
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/api/feeds", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, "POST", "/login", `{"passphrase":"nope"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := e.login(t)
	rec = e.do(t, "GET", "/api/feeds", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "POST", "/logout", "", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, "GET", "/api/feeds", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIsThrottled(t *testing.T) {
	e := newTestEnv(t)
	codes := make([]int, 0, 4)
	for range 4 {
		codes = append(codes, e.do(t, "POST", "/login", `{"passphrase":"wrong"}`, nil).Code)
	}
	require.Equal(t, []int{401, 401, 401, 429}, codes)
}

func TestVisitCountedOncePerSession(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	first := e.login(t)
	for range 3 {
		require.Equal(t, http.StatusOK, e.do(t, "GET", "/api/stats", "", first).Code)
	}
	require.Equal(t, 1, e.arc.Stats(ctx).Visits)

	second := e.login(t)
	rec := e.do(t, "GET", "/api/stats", "", second)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, decode(t, rec)["visits"])
}

func TestFeedManagement(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	rec := e.do(t, "POST", "/api/feeds", `{"url":"https://a.example/rss"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, "POST", "/api/feeds", `{"url":"https://a.example/rss"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decode(t, rec)["added"])

	rec = e.do(t, "POST", "/api/feeds", `{"url":"ftp://a.example/rss"}`, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e.srv.discover = func(_ context.Context, pageURL string) (string, error) {
		if pageURL == "https://blog.example/" {
			return "https://blog.example/feed.xml", nil
		}
		return "", feeds.ErrNoFeed
	}
	rec = e.do(t, "POST", "/api/feeds", `{"url":"https://blog.example/","discover":true}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "https://blog.example/feed.xml", decode(t, rec)["url"])
	rec = e.do(t, "POST", "/api/feeds", `{"url":"https://plain.example/","discover":true}`, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, "POST", "/api/feeds", `{"url":"r/golang","discover":true}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "https://www.reddit.com/r/golang/.rss", decode(t, rec)["url"])

	rec = e.do(t, "DELETE", "/api/feeds", `{"urls":["https://a.example/rss"]}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode(t, rec)["removed"])

	rec = e.do(t, "GET", "/api/feeds", "", cookie)
	require.Equal(t, []any{"https://blog.example/feed.xml", "https://www.reddit.com/r/golang/.rss"}, decode(t, rec)["urls"])

	rec = e.do(t, "GET", "/api/feeds/suggestions?q=security", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decode(t, rec)["feeds"])
}

func TestRuns(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	rec := e.do(t, "POST", "/api/runs", "", cookie)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "run-1", decode(t, rec)["run_id"])

	e.runner.busy = true
	rec = e.do(t, "POST", "/api/runs", "", cookie)
	require.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, e.db.RecordRun(context.Background(), models.RunReport{ID: "x", Date: "2026-10-16", State: models.StateDone}))
	rec = e.do(t, "GET", "/api/runs", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["recent"], 1)
}

func TestDigests(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)
	ctx := context.Background()

	require.NoError(t, e.arc.PutDigest(ctx, "2026-10-17", models.AnalysisResult{Summary: "오늘의 요약"}))

	rec := e.do(t, "GET", "/api/digests/2026-10-17", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	digest := decode(t, rec)["digest"].(map[string]any)
	require.Equal(t, "오늘의 요약", digest["summary"])
	require.Equal(t, []any{}, digest["keywords"])
	require.NotContains(t, digest, "image_path")

	require.Equal(t, http.StatusOK, e.do(t, "GET", "/api/digests/today", "", cookie).Code)
	require.Equal(t, http.StatusNotFound, e.do(t, "GET", "/api/digests/2026-01-01", "", cookie).Code)
	require.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/api/digests/yesterday", "", cookie).Code)
	require.Equal(t, http.StatusNotFound, e.do(t, "GET", "/api/digests/2026-10-17/image", "", cookie).Code)
}

func TestAPIKeyEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.arc.PutDigest(ctx, "2026-10-17", models.AnalysisResult{Summary: "s"}))

	rec := e.do(t, "GET", "/api/v1/digests/2026-10-17", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, "GET", "/api/v1/digests/2026-10-17?api_key=x", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	cookie := e.login(t)
	rec = e.do(t, "POST", "/api/settings/apikey/regenerate", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	key := decode(t, rec)["api_key"].(string)

	rec = e.do(t, "GET", "/api/settings/apikey", "", cookie)
	require.NotEqual(t, key, decode(t, rec)["api_key"])

	rec = e.do(t, "GET", "/api/v1/digests/2026-10-17?api_key=wrong", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, "GET", "/api/v1/digests/2026-10-17?api_key="+key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest("POST", "/api/v1/collect", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	out := httptest.NewRecorder()
	e.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	require.Equal(t, 1, e.runner.runs)

	e.runner.report.State = models.StateFailed
	out = httptest.NewRecorder()
	e.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusInternalServerError, out.Code)
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode(t, rec)["status"])
}

type brokenRegistry struct {
	*archive.Archive
}

func (brokenRegistry) Feeds(context.Context) ([]string, error) {
	return nil, errors.New("502 bad gateway")
}

func TestFeedListReportsUnreadableRegistry(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)
	e.srv.archive = brokenRegistry{e.arc}

	rec := e.do(t, "GET", "/api/feeds", "", cookie)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotContains(t, rec.Body.String(), "urls")
}
