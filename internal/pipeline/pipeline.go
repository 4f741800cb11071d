// Package pipeline runs one collection cycle: fetch feeds, analyze, draw the
// infographic and persist the digest under today's date.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thinkscotty/newsroom/internal/ai"
	"github.com/thinkscotty/newsroom/internal/archive"
	"github.com/thinkscotty/newsroom/internal/infographic"
	"github.com/thinkscotty/newsroom/internal/models"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

type Fetcher interface {
	Fetch(ctx context.Context, urls []string, maxPerFeed int) []models.FeedItem
}

type Analyzer interface {
	Analyze(ctx context.Context, items []models.FeedItem) (models.AnalysisResult, error)
}

type Renderer interface {
	Generate(ctx context.Context, summary string, keywords []string) *infographic.Image
}

// Archive is the part of the document archive a run writes to.
type Archive interface {
	Feeds(ctx context.Context) ([]string, error)
	PutDigest(ctx context.Context, date string, result models.AnalysisResult) error
	SaveImage(ctx context.Context, date time.Time, data []byte) (string, bool)
}

// RunRecorder keeps finished run reports, typically in the local database.
type RunRecorder interface {
	RecordRun(ctx context.Context, report models.RunReport) error
}

type Options struct {
	MaxPerFeed int
	Location   *time.Location
	Now        func() time.Time
	Recorder   RunRecorder
}

type Orchestrator struct {
	fetcher  Fetcher
	analyzer Analyzer
	renderer Renderer
	archive  Archive
	opts     Options

	running sync.Mutex

	stateMu sync.RWMutex
	current models.RunReport
	last    *models.RunReport
}

// New builds an Orchestrator. renderer may be nil, in which case no image
// is produced.
func New(f Fetcher, a Analyzer, r Renderer, arc Archive, opts Options) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{fetcher: f, analyzer: a, renderer: r, archive: arc, opts: opts,
		current: models.RunReport{State: models.StateIdle}}
}

// Today is the run date in the configured time zone.
func (o *Orchestrator) Today() string {
	return o.opts.Now().In(o.opts.Location).Format(archive.DateLayout)
}

// Status returns the in-flight run, or an idle report, plus the last
// finished run if any.
func (o *Orchestrator) Status() (current models.RunReport, last *models.RunReport) {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	current = o.current
	current.Stages = append([]models.StageReport(nil), o.current.Stages...)
	if o.last != nil {
		l := *o.last
		last = &l
	}
	return current, last
}

// Run executes one cycle. The returned report is complete whether or not
// the run failed; err is non-nil exactly when the final state is failed.
func (o *Orchestrator) Run(ctx context.Context) (models.RunReport, error) {
	if !o.running.TryLock() {
		return models.RunReport{}, ErrRunInProgress
	}
	defer o.running.Unlock()
	return o.execute(ctx, uuid.NewString())
}

// Start launches a run in the background, detached from ctx's cancellation,
// and returns its id.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	if !o.running.TryLock() {
		return "", ErrRunInProgress
	}
	id := uuid.NewString()
	go func() {
		defer o.running.Unlock()
		o.execute(context.WithoutCancel(ctx), id)
	}()
	return id, nil
}

func (o *Orchestrator) execute(ctx context.Context, id string) (report models.RunReport, err error) {
	start := o.opts.Now().In(o.opts.Location)
	report = models.RunReport{
		ID:        id,
		Date:      start.Format(archive.DateLayout),
		State:     models.StateIdle,
		StartedAt: start,
	}
	slog.Info("Pipeline run started", "run_id", report.ID, "date", report.Date)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in pipeline run", "run_id", report.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			report.State = models.StateFailed
			report.Error = err.Error()
		} else {
			report.State = models.StateDone
		}
		report.Duration = o.opts.Now().Sub(start)
		o.finish(ctx, report)
	}()

	err = o.run(ctx, &report, start)
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, report *models.RunReport, start time.Time) error {
	o.enter(report, models.StateFetching)
	began := o.opts.Now()
	urls, err := o.archive.Feeds(ctx)
	if err != nil {
		o.stage(report, models.StateFetching, models.StageFailed, err.Error(), began)
		return fmt.Errorf("read feed registry: %w", err)
	}
	items := o.fetcher.Fetch(ctx, urls, o.opts.MaxPerFeed)
	report.Items = len(items)
	fetchStatus := models.StageOK
	if len(urls) > 0 && len(items) == 0 {
		fetchStatus = models.StageDegraded
	}
	o.stage(report, models.StateFetching, fetchStatus, fmt.Sprintf("%d items from %d feeds", len(items), len(urls)), began)

	o.enter(report, models.StateAnalyzing)
	began = o.opts.Now()
	result, err := o.analyzer.Analyze(ctx, items)
	if err != nil {
		o.stage(report, models.StateAnalyzing, models.StageFailed, err.Error(), began)
		return fmt.Errorf("analyze: %w", err)
	}
	analyzeStatus := models.StageOK
	if ai.Degraded(result) {
		analyzeStatus = models.StageDegraded
	}
	o.stage(report, models.StateAnalyzing, analyzeStatus, fmt.Sprintf("%d keywords", len(result.Keywords)), began)

	switch {
	case len(items) == 0 || result.Summary == "":
		o.stage(report, models.StateRendering, models.StageSkipped, "nothing to draw", o.opts.Now())
	case o.renderer == nil:
		o.stage(report, models.StateRendering, models.StageSkipped, "image generation disabled", o.opts.Now())
	default:
		o.enter(report, models.StateRendering)
		began = o.opts.Now()
		status, detail := o.render(ctx, start, &result)
		report.ImagePath = result.ImagePath
		o.stage(report, models.StateRendering, status, detail, began)
	}

	o.enter(report, models.StatePersisting)
	began = o.opts.Now()
	if err := o.archive.PutDigest(ctx, report.Date, result); err != nil {
		o.stage(report, models.StatePersisting, models.StageFailed, err.Error(), began)
		return fmt.Errorf("persist digest: %w", err)
	}
	o.stage(report, models.StatePersisting, models.StageOK, "", began)
	return nil
}

// render never fails the run; problems come back as a degraded status.
func (o *Orchestrator) render(ctx context.Context, date time.Time, result *models.AnalysisResult) (string, string) {
	img := o.renderer.Generate(ctx, result.Summary, result.Keywords)
	if img == nil {
		slog.Warn("No infographic produced")
		return models.StageDegraded, "no image produced"
	}
	path, ok := o.archive.SaveImage(ctx, date, img.Data)
	if !ok {
		slog.Warn("Failed to save infographic, continuing without image", "source", img.Source)
		return models.StageDegraded, "image save failed (" + img.Source + ")"
	}
	result.ImagePath = path
	return models.StageOK, img.Source
}

func (o *Orchestrator) enter(report *models.RunReport, state string) {
	report.State = state
	o.publish(report)
}

func (o *Orchestrator) stage(report *models.RunReport, stage, status, detail string, began time.Time) {
	d := o.opts.Now().Sub(began)
	report.Stages = append(report.Stages, models.StageReport{Stage: stage, Status: status, Detail: detail, Duration: d})
	slog.Info("Pipeline stage finished", "run_id", report.ID, "stage", stage, "status", status, "detail", detail, "duration", d)
	o.publish(report)
}

func (o *Orchestrator) publish(report *models.RunReport) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.current = *report
	o.current.Stages = append([]models.StageReport(nil), report.Stages...)
}

func (o *Orchestrator) finish(ctx context.Context, report models.RunReport) {
	o.stateMu.Lock()
	o.current = models.RunReport{State: models.StateIdle}
	o.last = &report
	o.stateMu.Unlock()

	if report.State == models.StateFailed {
		slog.Error("Pipeline run failed", "run_id", report.ID, "date", report.Date, "error", report.Error, "duration", report.Duration)
	} else {
		slog.Info("Pipeline run finished", "run_id", report.ID, "date", report.Date, "items", report.Items,
			"image", report.ImagePath, "duration", report.Duration)
	}

	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			slog.Error("Failed to record run", "run_id", report.ID, "error", err)
		}
	}
}
