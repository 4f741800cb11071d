// Package ai turns collected feed items into a digest using a language model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thinkscotty/newsroom/internal/models"
)

// ErrorPrefix starts the summary of a digest whose model call or parse failed.
const ErrorPrefix = "AI 분석 중 오류가 발생했습니다"

const (
	annotationRunes    = 300
	responsePrefixSize = 200
	listedModelsLimit  = 5
)

// Engine produces the daily AnalysisResult with one batched model call.
type Engine struct {
	model     TextModel
	primary   string
	fallbacks []string
}

// NewEngine builds an Engine. An empty primary uses DefaultModel and nil
// fallbacks use DefaultFallbackModels.
func NewEngine(model TextModel, primary string, fallbacks []string) *Engine {
	if primary == "" {
		primary = DefaultModel
	}
	if fallbacks == nil {
		fallbacks = DefaultFallbackModels
	}
	return &Engine{model: model, primary: primary, fallbacks: fallbacks}
}

// Analyze summarizes items. Model and parse failures are folded into the
// returned result; only ErrNoCapableModel is returned as an error.
func (e *Engine) Analyze(ctx context.Context, items []models.FeedItem) (models.AnalysisResult, error) {
	if len(items) == 0 {
		return models.AnalysisResult{
			Summary:  models.NoNews,
			Keywords: []string{},
			Trends:   "",
			Articles: []models.AnnotatedArticle{},
		}, nil
	}

	modelName, err := selectModel(ctx, e.model, e.primary, e.fallbacks)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	slog.Info("Analyzing news", "items", len(items), "model", modelName)
	response, err := e.model.GenerateText(ctx, modelName, BuildAnalysisPrompt(items))
	if err != nil {
		slog.Error("Analysis call failed", "model", modelName, "error", err)
		return e.errorResult(ctx, err, items), nil
	}

	response = strings.TrimSpace(response)
	fields, err := parseAnalysis(ExtractJSON(response))
	if err != nil {
		slog.Warn("Analysis response is not valid JSON", "model", modelName, "error", err)
		prefix, _ := truncateRunes(response, responsePrefixSize)
		return models.AnalysisResult{
			Summary:  ErrorPrefix + ". (JSON 파싱 실패)\n응답: " + prefix,
			Keywords: []string{},
			Trends:   "",
			Articles: rawArticles(items),
		}, nil
	}

	return models.AnalysisResult{
		Summary:  fields.Summary,
		Keywords: fields.Keywords,
		Trends:   fields.Trends,
		Articles: annotate(items),
	}, nil
}

// Degraded reports whether r is a fallback digest built after a failure.
func Degraded(r models.AnalysisResult) bool {
	return strings.HasPrefix(r.Summary, ErrorPrefix)
}

func (e *Engine) errorResult(ctx context.Context, cause error, items []models.FeedItem) models.AnalysisResult {
	msg := cause.Error()
	if ctx.Err() != nil || errors.Is(cause, context.DeadlineExceeded) {
		slog.Debug("Skipping model listing for cancelled analysis")
	} else if available, err := e.model.GenerativeModels(ctx); err == nil && len(available) > 0 {
		if len(available) > listedModelsLimit {
			available = available[:listedModelsLimit]
		}
		msg += "\n\n사용 가능한 모델: " + strings.Join(available, ", ")
	}
	return models.AnalysisResult{
		Summary:  ErrorPrefix + ": " + msg,
		Keywords: []string{},
		Trends:   "",
		Articles: rawArticles(items),
	}
}

// annotate derives each article's note locally from its own summary.
func annotate(items []models.FeedItem) []models.AnnotatedArticle {
	out := make([]models.AnnotatedArticle, 0, len(items))
	for _, item := range items {
		note := item.Summary
		if note == "" {
			note = models.NoSummary
		} else if cut, truncated := truncateRunes(note, annotationRunes); truncated {
			note = cut + "..."
		}
		out = append(out, article(item, note))
	}
	return out
}

// rawArticles copies each summary verbatim; used when analysis failed.
func rawArticles(items []models.FeedItem) []models.AnnotatedArticle {
	out := make([]models.AnnotatedArticle, 0, len(items))
	for _, item := range items {
		out = append(out, article(item, item.Summary))
	}
	return out
}

func article(item models.FeedItem, note string) models.AnnotatedArticle {
	return models.AnnotatedArticle{
		Title:      item.Title,
		Link:       item.Link,
		Summary:    item.Summary,
		AIAnalysis: note,
		Published:  item.Published,
	}
}

// VisualPrompt asks the text model for an English image prompt describing
// the digest. Failures yield "" so callers can fall back to their own prompt.
func (e *Engine) VisualPrompt(ctx context.Context, summary string, keywords []string) string {
	if strings.TrimSpace(summary) == "" {
		return ""
	}
	modelName, err := selectModel(ctx, e.model, e.primary, e.fallbacks)
	if err != nil {
		slog.Warn("No model for visual prompt", "error", err)
		return ""
	}
	text, err := e.model.GenerateText(ctx, modelName, BuildVisualPrompt(summary, keywords))
	if err != nil {
		slog.Warn("Visual prompt generation failed", "model", modelName, "error", err)
		return ""
	}
	return strings.TrimSpace(CleanJSONResponse(text))
}

// Describe renders a short text form of a result for CLI output.
func Describe(r models.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary:\n%s\n", r.Summary)
	if len(r.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
	}
	if r.Trends != "" {
		fmt.Fprintf(&sb, "Trends:\n%s\n", r.Trends)
	}
	fmt.Fprintf(&sb, "Articles: %d\n", len(r.Articles))
	if r.ImagePath != "" {
		fmt.Fprintf(&sb, "Image: %s\n", r.ImagePath)
	}
	return sb.String()
}
