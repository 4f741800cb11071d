package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/thinkscotty/newsroom/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"Path to configuration file." default:"config.yaml" type:"path"`
	EnvFile string `help:"Path to .env file with secrets." default:".env" type:"path" name:"env-file"`
}

type CLI struct {
	Globals

	Serve       ServeCmd       `cmd:"" default:"1" help:"Serve the management API and run the daily schedule."`
	Collect     CollectCmd     `cmd:"" help:"Run one collection cycle now."`
	Models      ModelsCmd      `cmd:"" help:"List generation-capable models and smoke-test one."`
	Infographic InfographicCmd `cmd:"" help:"Generate an infographic from a summary and keywords."`
	Update      UpdateCmd      `cmd:"" help:"Check for a newer release and install it."`
	Version     VersionCmd     `cmd:"" help:"Show version and exit."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("newsroom"),
		kong.Description("Daily IT news digest: collect feeds, summarize, illustrate, archive."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// load reads configuration and installs the default logger.
func (g *Globals) load() (config.Config, error) {
	cfg, err := config.Load(g.Config, g.EnvFile)
	if err != nil {
		return cfg, err
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}
