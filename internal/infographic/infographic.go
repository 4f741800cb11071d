// Package infographic produces the optional daily image: remote image
// models first, then a locally drawn keyword diagram.
package infographic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Request is what every strategy draws from. Prompt is the English image
// prompt shared by the remote strategies.
type Request struct {
	Summary  string
	Keywords []string
	Prompt   string
}

type Strategy interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Prompter turns a digest into an English image prompt, returning "" when
// it cannot.
type Prompter interface {
	VisualPrompt(ctx context.Context, summary string, keywords []string) string
}

// Image is a generated PNG and the strategy that produced it.
type Image struct {
	Data   []byte
	Source string
}

// Generator runs strategies in order until one returns an image.
type Generator struct {
	prompter   Prompter
	strategies []Strategy
}

func NewGenerator(p Prompter, strategies ...Strategy) *Generator {
	return &Generator{prompter: p, strategies: strategies}
}

// Strategies returns the configured strategy names in order.
func (g *Generator) Strategies() []string {
	names := make([]string, len(g.strategies))
	for i, s := range g.strategies {
		names[i] = s.Name()
	}
	return names
}

// Generate returns nil when no strategy produced an image; that is not an
// error.
func (g *Generator) Generate(ctx context.Context, summary string, keywords []string) *Image {
	req := Request{Summary: summary, Keywords: keywords}
	if g.needsPrompt() {
		if g.prompter != nil {
			req.Prompt = g.prompter.VisualPrompt(ctx, summary, keywords)
		}
		if req.Prompt == "" {
			req.Prompt = DefaultPrompt(keywords)
		}
	}

	for _, s := range g.strategies {
		if ctx.Err() != nil {
			slog.Warn("Infographic generation cancelled", "error", ctx.Err())
			return nil
		}
		data, err := s.Generate(ctx, req)
		if err != nil {
			slog.Info("Infographic strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		slog.Info("Infographic generated", "strategy", s.Name(), "bytes", len(data))
		return &Image{Data: ToPNG(data), Source: s.Name()}
	}
	return nil
}

func (g *Generator) needsPrompt() bool {
	for _, s := range g.strategies {
		if _, local := s.(Local); !local {
			return true
		}
	}
	return false
}

// DefaultPrompt is used when no model-written prompt is available.
func DefaultPrompt(keywords []string) string {
	topic := "today's technology news"
	if len(keywords) > 0 {
		topic = "today's technology news about " + strings.Join(keywords, ", ")
	}
	return "A clean, modern infographic-style illustration of " + topic +
		". 16:9, dark navy background, glowing abstract icons, charts and network lines. No text, letters or numbers."
}

// ToPNG re-encodes decodable images as PNG, scaling anything wider than the
// canvas down to canvas width. Undecodable data is returned unchanged.
func ToPNG(data []byte) []byte {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Generated image could not be decoded, storing as-is", "error", err)
		return data
	}
	b := src.Bounds()
	if format == "png" && b.Dx() <= CanvasWidth {
		return data
	}

	var out image.Image = src
	if b.Dx() > CanvasWidth {
		h := b.Dy() * CanvasWidth / b.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, CanvasWidth, max(h, 1)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		slog.Warn("PNG re-encode failed, storing as-is", "format", format, "error", err)
		return data
	}
	return buf.Bytes()
}

// errAll folds per-model failures into one error.
func errAll(label string, failures []string) error {
	if len(failures) == 0 {
		return fmt.Errorf("%s: no models configured", label)
	}
	return fmt.Errorf("%s: %s", label, strings.Join(failures, "; "))
}
