package ai

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ErrNoCapableModel means the API offers no model that can generate content.
var ErrNoCapableModel = errors.New("no generation-capable model available")

// TextModel is the language-model surface the engine needs.
type TextModel interface {
	// GenerativeModels lists model ids that support content generation.
	GenerativeModels(ctx context.Context) ([]string, error)
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

const DefaultModel = "gemini-2.0-flash"

// DefaultFallbackModels are tried in order when the primary is not offered.
var DefaultFallbackModels = []string{"gemini-2.0-flash-exp", "gemini-2.0-flash", "gemini-2.5-flash"}

// selectModel picks the primary if offered, then the first offered fallback,
// then whatever capable model is listed first. If the list itself cannot be
// read the primary is used as-is and the generation call reports any problem.
func selectModel(ctx context.Context, tm TextModel, primary string, fallbacks []string) (string, error) {
	available, err := tm.GenerativeModels(ctx)
	if err != nil {
		slog.Warn("Could not list models, using primary", "model", primary, "error", err)
		return primary, nil
	}
	if len(available) == 0 {
		return "", ErrNoCapableModel
	}
	if slices.Contains(available, primary) {
		return primary, nil
	}
	for _, fb := range fallbacks {
		if slices.Contains(available, fb) {
			slog.Info("Primary model unavailable, using fallback", "primary", primary, "model", fb)
			return fb, nil
		}
	}
	slog.Info("No preferred model available, using first capable model", "model", available[0])
	return available[0], nil
}
