package models

import "time"

// Placeholder values used when a feed entry or analysis leaves a field empty.
const (
	NoTitle   = "제목 없음"
	NoSummary = "요약 없음"
	NoNews    = "수집된 뉴스가 없습니다."
)

// FeedItem is one entry pulled from an RSS/Atom feed.
type FeedItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Published string `json:"published"`
}

type AnnotatedArticle struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Summary    string `json:"summary"`
	AIAnalysis string `json:"ai_analysis"`
	Published  string `json:"published"`
}

// AnalysisResult is the daily digest stored under its date in the archive.
type AnalysisResult struct {
	Summary   string             `json:"summary"`
	Keywords  []string           `json:"keywords"`
	Trends    string             `json:"trends"`
	Articles  []AnnotatedArticle `json:"articles"`
	ImagePath string             `json:"image_path,omitempty"`
}

// Normalize replaces nil slices so they encode as [] rather than null.
func (r *AnalysisResult) Normalize() {
	if r.Keywords == nil {
		r.Keywords = []string{}
	}
	if r.Articles == nil {
		r.Articles = []AnnotatedArticle{}
	}
}

// NewsArchive maps YYYY-MM-DD to that day's digest.
type NewsArchive map[string]AnalysisResult

type FeedRegistry struct {
	URLs []string `json:"urls"`
}

type VisitorStats struct {
	Visits int `json:"visits"`
}

// Stats is the read-only summary returned by the management surface.
type Stats struct {
	Visits     int      `json:"visits"`
	DigestDays int      `json:"digest_days"`
	FeedCount  int      `json:"feed_count"`
	LatestDate string   `json:"latest_date,omitempty"`
	Dates      []string `json:"dates"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	Visited   bool      `json:"visited"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Run states reported by the pipeline.
const (
	StateIdle       = "idle"
	StateFetching   = "fetching"
	StateAnalyzing  = "analyzing"
	StateRendering  = "rendering"
	StatePersisting = "persisting"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Stage outcomes.
const (
	StageOK       = "ok"
	StageDegraded = "degraded"
	StageSkipped  = "skipped"
	StageFailed   = "failed"
)

type StageReport struct {
	Stage    string        `json:"stage"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunReport describes one pipeline run from start to its terminal state.
type RunReport struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	State     string        `json:"state"`
	Items     int           `json:"items"`
	ImagePath string        `json:"image_path,omitempty"`
	Error     string        `json:"error,omitempty"`
	Stages    []StageReport `json:"stages"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RunLogEntry is a persisted run summary read back from the local database.
type RunLogEntry struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	RunDate    string    `json:"run_date"`
	State      string    `json:"state"`
	Items      int       `json:"items"`
	ImagePath  string    `json:"image_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	Stages     string    `json:"stages"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
