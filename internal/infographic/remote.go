package infographic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thinkscotty/newsroom/internal/gemini"
)

// DefaultImageModels are tried newest first.
var DefaultImageModels = []string{
	"gemini-2.5-flash-image",
	"gemini-2.0-flash-preview-image-generation",
	"imagen-4.0-generate-001",
	"imagen-3.0-generate-002",
}

const DefaultPredictModel = "imagen-3.0-generate-002"

// ImageModel generates an image with a named model.
type ImageModel interface {
	GenerateImage(ctx context.Context, model, prompt string) ([]byte, error)
}

// Predictor is a direct REST image endpoint.
type Predictor interface {
	Predict(ctx context.Context, model, prompt string) ([]byte, error)
}

// NamedModels tries each model id in order with one client.
type NamedModels struct {
	Label  string
	Client ImageModel
	Models []string
}

func (n NamedModels) Name() string { return n.Label }

func (n NamedModels) Generate(ctx context.Context, req Request) ([]byte, error) {
	if n.Client == nil {
		return nil, errors.New("no client")
	}
	var failures []string
	for _, model := range n.Models {
		data, err := n.Client.GenerateImage(ctx, model, req.Prompt)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if err == nil {
			err = errors.New("empty image")
		}
		if gemini.IsUnavailable(err) {
			slog.Debug("Image model unavailable", "strategy", n.Label, "model", model)
		} else {
			slog.Warn("Image model failed", "strategy", n.Label, "model", model, "error", err)
		}
		failures = append(failures, fmt.Sprintf("%s: %v", model, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errAll(n.Label, failures)
}

// Vertex creates its client on first use, since construction needs cloud
// credentials that may be missing.
type Vertex struct {
	Connect func(ctx context.Context) (ImageModel, error)
	Model   string
}

func (Vertex) Name() string { return "vertex" }

func (v Vertex) Generate(ctx context.Context, req Request) ([]byte, error) {
	if v.Connect == nil {
		return nil, errors.New("vertex not configured")
	}
	client, err := v.Connect(ctx)
	if err != nil {
		return nil, err
	}
	model := v.Model
	if model == "" {
		model = DefaultPredictModel
	}
	return client.GenerateImage(ctx, model, req.Prompt)
}

// REST calls the Imagen predict endpoint with a plain API key.
type REST struct {
	Client Predictor
	Model  string
}

func (REST) Name() string { return "imagen-rest" }

func (r REST) Generate(ctx context.Context, req Request) ([]byte, error) {
	if r.Client == nil {
		return nil, errors.New("no client")
	}
	model := r.Model
	if model == "" {
		model = DefaultPredictModel
	}
	return r.Client.Predict(ctx, model, req.Prompt)
}

// Options describes the credentials available to Build.
type Options struct {
	Primary ImageModel
	// SecondaryKey enables the secondary strategies when it is set and
	// differs from PrimaryKey.
	PrimaryKey   string
	SecondaryKey string
	Secondary    ImageModel
	Predictor    Predictor
	Vertex       func(ctx context.Context) (ImageModel, error)
	Models       []string
	Prompter     Prompter
}

// Build assembles the standard chain: primary named models, then the
// secondary-key paths, then the local fallback.
func Build(opts Options) *Generator {
	models := opts.Models
	if len(models) == 0 {
		models = DefaultImageModels
	}

	var chain []Strategy
	if opts.Primary != nil {
		chain = append(chain, NamedModels{Label: "primary", Client: opts.Primary, Models: models})
	}
	if opts.SecondaryKey != "" && opts.SecondaryKey != opts.PrimaryKey {
		if opts.Vertex != nil {
			chain = append(chain, Vertex{Connect: opts.Vertex})
		}
		if opts.Predictor != nil {
			chain = append(chain, REST{Client: opts.Predictor})
		}
		if opts.Secondary != nil {
			chain = append(chain, NamedModels{Label: "secondary", Client: opts.Secondary, Models: models})
		}
	}
	chain = append(chain, Local{})
	return NewGenerator(opts.Prompter, chain...)
}
