package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/sync/errgroup"

	"github.com/thinkscotty/newsroom/internal/ai"
	"github.com/thinkscotty/newsroom/internal/apikey"
	"github.com/thinkscotty/newsroom/internal/archive"
	"github.com/thinkscotty/newsroom/internal/database"
	"github.com/thinkscotty/newsroom/internal/pipeline"
	"github.com/thinkscotty/newsroom/internal/scheduler"
	"github.com/thinkscotty/newsroom/internal/server"
	"github.com/thinkscotty/newsroom/internal/store"
	"github.com/thinkscotty/newsroom/internal/updater"
)

type ServeCmd struct{}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	slog.Info("Starting Newsroom", "version", version)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()
	slog.Info("Database initialized", "path", cfg.Database.Path)

	if err := ensureAPIKey(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(cfg, false)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, backend, pipeline.Options{Recorder: db})
	if err != nil {
		return err
	}

	loc, _ := cfg.Location()
	sched := scheduler.New(db, a.pipeline, cfg.Schedule.Enabled, cfg.Schedule.Hour, loc)
	srv := server.New(cfg, db, a.archive, a.pipeline, version)

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		sched.Run(ctx)
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return grp.Wait()
}

// ensureAPIKey generates the automation key on first start.
func ensureAPIKey(db *database.DB) error {
	key, err := db.GetSetting(database.SettingAPIKey)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}
	if key != "" {
		return nil
	}
	key, err = apikey.Generate()
	if err != nil {
		return err
	}
	if err := db.SetSetting(database.SettingAPIKey, key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	slog.Info("Generated API key for automation clients", "api_key", apikey.Mask(key))
	return nil
}

type CollectCmd struct {
	Date   string `help:"Archive under this date (YYYY-MM-DD) instead of today."`
	DryRun bool   `help:"Read the real archive but keep all writes in memory." name:"dry-run"`
}

func (c *CollectCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{}
	if c.Date != "" {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		day, err := time.ParseInLocation(archive.DateLayout, c.Date, loc)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		opts.Now = func() time.Time { return day.Add(12 * time.Hour) }
	}
	if !c.DryRun {
		if db, err := database.New(cfg.Database.Path); err != nil {
			slog.Warn("Run log unavailable", "error", err)
		} else {
			defer db.Close()
			opts.Recorder = db
		}
	}

	backend, err := newBackend(cfg, c.DryRun)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, backend, opts)
	if err != nil {
		return err
	}

	report, runErr := a.pipeline.Run(ctx)
	for _, s := range report.Stages {
		fmt.Printf("%-11s %-8s %s\n", s.Stage, s.Status, s.Detail)
	}
	if runErr != nil {
		return runErr
	}
	if digest, ok := a.archive.Digest(ctx, report.Date); ok {
		fmt.Printf("\n[%s]\n%s", report.Date, ai.Describe(digest))
	}
	return nil
}

type ModelsCmd struct {
	Prompt string `help:"Prompt for the smoke test." default:"Say hello in Korean in one short sentence."`
}

func (c *ModelsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	client, _, _, err := newModels(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("gemini api key is required (NEWSROOM_GEMINI_API_KEY)")
	}

	available, err := client.GenerativeModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(available) == 0 {
		return ai.ErrNoCapableModel
	}
	for _, m := range available {
		fmt.Println(m)
	}

	reply, err := client.GenerateText(ctx, available[0], c.Prompt)
	if err != nil {
		return fmt.Errorf("smoke test with %s: %w", available[0], err)
	}
	fmt.Printf("\n%s: %s\n", available[0], strings.TrimSpace(reply))
	return nil
}

type InfographicCmd struct {
	Summary  string   `help:"Digest summary the image is drawn from." required:""`
	Keywords []string `help:"Comma-separated keywords." sep:","`
	Out      string   `help:"Write the PNG here." default:"infographic.png" type:"path"`
	Save     bool     `help:"Also store the image in the archive as a test image."`
}

func (c *InfographicCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	_, _, gen, err := newModels(ctx, cfg)
	if err != nil {
		return err
	}

	img := gen.Generate(ctx, c.Summary, c.Keywords)
	if img == nil {
		return errors.New("no image could be generated")
	}
	if err := os.WriteFile(c.Out, img.Data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes, %s)\n", c.Out, len(img.Data), img.Source)

	if !c.Save {
		return nil
	}
	backend, err := newBackend(cfg, false)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	arc := archive.New(store.New(backend), cfg.Store.SaveRetries)
	path, ok := arc.SaveTestImage(ctx, time.Now().In(loc), img.Data)
	if !ok {
		return errors.New("failed to store test image")
	}
	fmt.Printf("Stored %s\n", path)
	return nil
}

type UpdateCmd struct {
	Check bool   `help:"Only report whether an update is available."`
	Repo  string `help:"Release repository." default:"thinkscotty/newsroom"`
}

func (c *UpdateCmd) Run(g *Globals) error {
	fmt.Printf("Newsroom %s, checking for updates...\n", version)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client := github.NewClient(&http.Client{Timeout: 15 * time.Second})
	if token := os.Getenv("NEWSROOM_GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	checker, err := updater.NewChecker(client, c.Repo)
	if err != nil {
		return err
	}
	rel, err := checker.Latest(ctx, version)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	if rel == nil {
		fmt.Println("Already running the latest version.")
		return nil
	}

	fmt.Printf("Update available: %s -> %s (%s)\n", version, rel.Tag, rel.URL)
	if c.Check {
		return nil
	}

	execPath, err := updater.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	if err := updater.Install(ctx, rel, execPath, nil); err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}
	fmt.Printf("Updated %s -> %s. Restart the service to use the new version.\n", version, rel.Version)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("Newsroom %s (built %s)\n", version, buildTime)
	return nil
}
