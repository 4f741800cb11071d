package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thinkscotty/newsroom/internal/ai"
	"github.com/thinkscotty/newsroom/internal/archive"
	"github.com/thinkscotty/newsroom/internal/config"
	"github.com/thinkscotty/newsroom/internal/feeds"
	"github.com/thinkscotty/newsroom/internal/gemini"
	"github.com/thinkscotty/newsroom/internal/infographic"
	"github.com/thinkscotty/newsroom/internal/pipeline"
	"github.com/thinkscotty/newsroom/internal/store"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      config.Config
	gemini   *gemini.Client
	engine   *ai.Engine
	images   *infographic.Generator
	archive  *archive.Archive
	pipeline *pipeline.Orchestrator
}

func geminiOptions(cfg config.Config) []gemini.Option {
	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		return nil
	}
	return []gemini.Option{gemini.WithHTTPClient(&http.Client{Timeout: timeout})}
}

// newModels builds the language model client and the image chain. Without
// an API key only the local image fallback is available.
func newModels(ctx context.Context, cfg config.Config) (*gemini.Client, *ai.Engine, *infographic.Generator, error) {
	opts := infographic.Options{
		PrimaryKey:   cfg.Gemini.APIKey,
		SecondaryKey: cfg.Gemini.ImagenAPIKey,
		Models:       cfg.Gemini.ImageModels,
	}

	var client *gemini.Client
	var engine *ai.Engine
	if cfg.Gemini.APIKey != "" {
		var err error
		client, err = gemini.New(ctx, cfg.Gemini.APIKey, geminiOptions(cfg)...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		engine = ai.NewEngine(client, cfg.Gemini.Model, cfg.Gemini.FallbackModels)
		opts.Primary = client
		opts.Prompter = engine
	}

	if key := cfg.Gemini.ImagenAPIKey; key != "" && key != cfg.Gemini.APIKey {
		secondary, err := gemini.New(ctx, key, geminiOptions(cfg)...)
		if err != nil {
			slog.Warn("Secondary image client unavailable", "error", err)
		} else {
			opts.Secondary = secondary
		}
		opts.Predictor = gemini.NewImagen(key)
		if project := cfg.Gemini.VertexProject; project != "" {
			location := cfg.Gemini.VertexLocation
			opts.Vertex = func(ctx context.Context) (infographic.ImageModel, error) {
				c, err := gemini.NewVertex(ctx, project, location, geminiOptions(cfg)...)
				if err != nil {
					return nil, err
				}
				return c, nil
			}
		}
	}

	gen := infographic.Build(opts)
	slog.Debug("Image strategies", "order", gen.Strategies())
	return client, engine, gen, nil
}

// newBackend connects to the GitHub archive. A dry run reads from it but
// keeps every write in memory.
func newBackend(cfg config.Config, dryRun bool) (store.Backend, error) {
	gh, err := store.NewGitHub(cfg.Store.Token, cfg.Store.Repo, cfg.Store.Branch)
	if err != nil {
		return nil, err
	}
	if dryRun {
		slog.Info("Dry run: writes stay in memory")
		return store.NewOverlay(gh), nil
	}
	return gh, nil
}

func newApp(ctx context.Context, cfg config.Config, backend store.Backend, opts pipeline.Options) (*app, error) {
	client, engine, gen, err := newModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("gemini api key is required")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts.Location = loc
	opts.MaxPerFeed = cfg.Feeds.MaxPerFeed

	arc := archive.New(store.New(backend), cfg.Store.SaveRetries)
	fetcher := feeds.NewFetcher(feeds.NewParser(cfg.Feeds.UserAgent), time.Duration(cfg.Feeds.TimeoutSeconds)*time.Second)

	return &app{
		cfg:      cfg,
		gemini:   client,
		engine:   engine,
		images:   gen,
		archive:  arc,
		pipeline: pipeline.New(fetcher, engine, gen, arc, opts),
	}, nil
}
